package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrAssociationNotFound is returned when a chat has no CRM association yet.
var ErrAssociationNotFound = errors.New("crm association not found")

// Association maps a chat to its CRM contact, lead and chat. It is saved after
// every CRM entity is created, so LeadID and CRMChatID may still be zero.
type Association struct {
	ChatID    int64
	ContactID int64
	LeadID    int64
	CRMChatID string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Complete reports whether contact, lead and chat all exist in the CRM.
func (a Association) Complete() bool {
	return a.ContactID != 0 && a.LeadID != 0 && a.CRMChatID != ""
}

const associationColumns = `chat_id, contact_id, COALESCE(lead_id, 0), COALESCE(crm_chat_id, ''), status, created_at, updated_at`

func scanAssociation(row pgx.Row) (Association, error) {
	var a Association
	if err := row.Scan(&a.ChatID, &a.ContactID, &a.LeadID, &a.CRMChatID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Association{}, ErrAssociationNotFound
		}
		return Association{}, err
	}
	return a, nil
}

// GetAssociation loads the association of a chat.
func (r *Repository) GetAssociation(ctx context.Context, chatID int64) (Association, error) {
	return scanAssociation(r.pool.QueryRow(ctx, `
		SELECT `+associationColumns+` FROM crm_associations WHERE chat_id = $1
	`, chatID))
}

// GetAssociationByCRMChat resolves a CRM chat back to the Telegram chat.
func (r *Repository) GetAssociationByCRMChat(ctx context.Context, crmChatID string) (Association, error) {
	return scanAssociation(r.pool.QueryRow(ctx, `
		SELECT `+associationColumns+` FROM crm_associations WHERE crm_chat_id = $1
	`, crmChatID))
}

// SaveAssociation stores a new or partially created association; the one lead per
// chat invariant is the primary key.
func (r *Repository) SaveAssociation(ctx context.Context, a Association) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm_associations (chat_id, contact_id, lead_id, crm_chat_id, status)
		VALUES ($1, $2, NULLIF($3::bigint, 0), NULLIF($4::text, ''), $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			lead_id = EXCLUDED.lead_id,
			crm_chat_id = EXCLUDED.crm_chat_id,
			status = EXCLUDED.status
	`, a.ChatID, a.ContactID, a.LeadID, a.CRMChatID, a.Status)
	return err
}

// UpdateAssociationStatus records the last pipeline status the lead was moved to.
func (r *Repository) UpdateAssociationStatus(ctx context.Context, chatID int64, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE crm_associations SET status = $2 WHERE chat_id = $1`, chatID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssociationNotFound
	}
	return nil
}
