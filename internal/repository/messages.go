package repository

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// AppendMessage stores one conversation turn.
func (r *Repository) AppendMessage(ctx context.Context, stateID int64, mode domain.Mode, role domain.Role, text string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (state_id, mode, role, text)
		VALUES ($1, $2, $3, $4)
	`, stateID, string(mode), string(role), text)
	return err
}

// ListMessages returns the latest turns of a mode, oldest first.
func (r *Repository) ListMessages(ctx context.Context, stateID int64, mode domain.Mode, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, state_id, mode, role, text, created_at
		FROM (
			SELECT id, state_id, mode, role, text, created_at
			FROM messages
			WHERE state_id = $1 AND mode = $2
			ORDER BY id DESC
			LIMIT $3
		) latest
		ORDER BY id ASC
	`, stateID, string(mode), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var (
			m          domain.Message
			mode, role string
		)
		if err := rows.Scan(&m.ID, &m.StateID, &mode, &role, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Mode = domain.Mode(mode)
		m.Role = domain.Role(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

// ClearMessages drops the whole history of a state.
func (r *Repository) ClearMessages(ctx context.Context, stateID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE state_id = $1`, stateID)
	return err
}
