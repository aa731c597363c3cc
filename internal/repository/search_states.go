package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// GetSearchSession loads the active search session of a state.
func (r *Repository) GetSearchSession(ctx context.Context, stateID int64) (domain.SearchSession, error) {
	var (
		session domain.SearchSession
		offers  []string
		params  []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, state_id, current_estate_index, current_offer_index, offers::text[], search_params, created_at, updated_at
		FROM estate_search_states
		WHERE state_id = $1
	`, stateID).Scan(&session.ID, &session.StateID, &session.CurrentEstateIndex, &session.CurrentOfferIndex,
		&offers, &params, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SearchSession{}, domain.ErrSearchSessionNotFound
		}
		return domain.SearchSession{}, err
	}

	session.Offers = make([]domain.Offer, 0, len(offers))
	for _, raw := range offers {
		offer, err := domain.DecodeOffer([]byte(raw))
		if err != nil {
			return domain.SearchSession{}, fmt.Errorf("search session %d: %w", session.ID, err)
		}
		session.Offers = append(session.Offers, offer)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &session.SearchParams); err != nil {
			return domain.SearchSession{}, fmt.Errorf("search session %d params: %w", session.ID, err)
		}
	}
	if session.CurrentOfferIndex >= len(session.Offers) {
		return domain.SearchSession{}, fmt.Errorf("search session %d: cursor %d out of range", session.ID, session.CurrentOfferIndex)
	}
	return session, nil
}

// SaveSearchSession stores a new session, replacing any previous one of the state.
func (r *Repository) SaveSearchSession(ctx context.Context, session domain.SearchSession) (domain.SearchSession, error) {
	offers := make([]string, 0, len(session.Offers))
	for _, offer := range session.Offers {
		data, err := domain.EncodeOffer(offer)
		if err != nil {
			return domain.SearchSession{}, err
		}
		offers = append(offers, string(data))
	}
	params, err := json.Marshal(session.SearchParams)
	if err != nil {
		return domain.SearchSession{}, fmt.Errorf("marshal search params: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO estate_search_states (state_id, current_estate_index, current_offer_index, offers, search_params)
		VALUES ($1, $2, $3, $4::text[]::jsonb[], $5::jsonb)
		ON CONFLICT (state_id) DO UPDATE SET
			current_estate_index = EXCLUDED.current_estate_index,
			current_offer_index = EXCLUDED.current_offer_index,
			offers = EXCLUDED.offers,
			search_params = EXCLUDED.search_params,
			created_at = now()
		RETURNING id, created_at, updated_at
	`, session.StateID, session.CurrentEstateIndex, session.CurrentOfferIndex, offers, string(params)).
		Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return domain.SearchSession{}, err
	}
	return session, nil
}

// UpdateSearchCursor persists the cursor position of a session.
func (r *Repository) UpdateSearchCursor(ctx context.Context, session domain.SearchSession) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estate_search_states
		SET current_estate_index = $2, current_offer_index = $3
		WHERE state_id = $1
	`, session.StateID, session.CurrentEstateIndex, session.CurrentOfferIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSearchSessionNotFound
	}
	return nil
}

// DeleteSearchSession drops the session of a state.
func (r *Repository) DeleteSearchSession(ctx context.Context, stateID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM estate_search_states WHERE state_id = $1`, stateID)
	return err
}

// DeleteStaleSearchSessions drops sessions untouched since before.
func (r *Repository) DeleteStaleSearchSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM estate_search_states WHERE updated_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
