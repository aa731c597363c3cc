package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

const stateColumns = `id, chat_id, mode, transferred_to_manager, count_message, count_search, count_finance, created_at, updated_at`

func scanState(row pgx.Row) (domain.ChatState, error) {
	var s domain.ChatState
	var mode string
	if err := row.Scan(&s.ID, &s.ChatID, &mode, &s.TransferredToManager,
		&s.MessageCount, &s.SearchCount, &s.FinanceCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatState{}, domain.ErrStateNotFound
		}
		return domain.ChatState{}, err
	}
	parsed, err := domain.ParseMode(mode)
	if err != nil {
		return domain.ChatState{}, fmt.Errorf("state %d: %w", s.ID, err)
	}
	s.Mode = parsed
	return s, nil
}

// GetState loads the state of a chat.
func (r *Repository) GetState(ctx context.Context, chatID int64) (domain.ChatState, error) {
	return scanState(r.pool.QueryRow(ctx, `
		SELECT `+stateColumns+`
		FROM states
		WHERE chat_id = $1
	`, chatID))
}

// CreateState inserts a fresh general-mode state, returning the existing row on conflict.
func (r *Repository) CreateState(ctx context.Context, chatID int64) (domain.ChatState, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO states (chat_id, mode)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO NOTHING
	`, chatID, string(domain.ModeGeneral))
	if err != nil {
		return domain.ChatState{}, err
	}
	return r.GetState(ctx, chatID)
}

// IncrementMessageCount atomically bumps count_message.
func (r *Repository) IncrementMessageCount(ctx context.Context, chatID int64) (domain.ChatState, error) {
	return r.updateState(ctx, `count_message = count_message + 1`, chatID)
}

// IncrementSearchCount atomically bumps count_search.
func (r *Repository) IncrementSearchCount(ctx context.Context, chatID int64) (domain.ChatState, error) {
	return r.updateState(ctx, `count_search = count_search + 1`, chatID)
}

// IncrementFinanceCount atomically bumps count_finance.
func (r *Repository) IncrementFinanceCount(ctx context.Context, chatID int64) (domain.ChatState, error) {
	return r.updateState(ctx, `count_finance = count_finance + 1`, chatID)
}

// SetMode switches the active expert of a chat.
func (r *Repository) SetMode(ctx context.Context, chatID int64, mode domain.Mode) (domain.ChatState, error) {
	return r.updateState(ctx, `mode = $2`, chatID, string(mode))
}

// SetTransferredToManager updates the hand-off flag together with the mode.
func (r *Repository) SetTransferredToManager(ctx context.Context, chatID int64, transferred bool, mode domain.Mode) (domain.ChatState, error) {
	return r.updateState(ctx, `transferred_to_manager = $2, mode = $3`, chatID, transferred, string(mode))
}

// DeleteState removes the state; search session and history cascade.
func (r *Repository) DeleteState(ctx context.Context, chatID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM states WHERE chat_id = $1`, chatID)
	return err
}

func (r *Repository) updateState(ctx context.Context, set string, chatID int64, args ...any) (domain.ChatState, error) {
	query := `UPDATE states SET ` + set + ` WHERE chat_id = $1 RETURNING ` + stateColumns
	return scanState(r.pool.QueryRow(ctx, query, append([]any{chatID}, args...)...))
}
