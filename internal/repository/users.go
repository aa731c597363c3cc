package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// GetUser loads the user record of a chat.
func (r *Repository) GetUser(ctx context.Context, chatID int64) (domain.User, error) {
	var (
		u      domain.User
		source string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, chat_id, source_type, is_bot_blocked, has_contact, created_at, updated_at
		FROM users
		WHERE chat_id = $1
	`, chatID).Scan(&u.ID, &u.ChatID, &source, &u.IsBotBlocked, &u.HasContact, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	u.SourceType = domain.SourceType(source)
	return u, nil
}

// CreateUser inserts the user record; an existing record keeps its original source.
func (r *Repository) CreateUser(ctx context.Context, chatID int64, source domain.SourceType) (domain.User, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (chat_id, source_type)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO NOTHING
	`, chatID, string(source))
	if err != nil {
		return domain.User{}, err
	}
	return r.GetUser(ctx, chatID)
}

// SetBotBlocked records whether delivery to the chat is blocked.
func (r *Repository) SetBotBlocked(ctx context.Context, chatID int64, blocked bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET is_bot_blocked = $2
		WHERE chat_id = $1 AND is_bot_blocked <> $2
	`, chatID, blocked)
	return err
}

// SetHasContact marks that the user left a phone or email.
func (r *Repository) SetHasContact(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET has_contact = TRUE WHERE chat_id = $1`, chatID)
	return err
}
