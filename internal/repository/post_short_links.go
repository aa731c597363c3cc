package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// CreatePostShortLink stores a post. Posts are append-only: a repeated id keeps the first version.
func (r *Repository) CreatePostShortLink(ctx context.Context, link domain.PostShortLink) (domain.PostShortLink, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO post_short_links (id, name, description, image_name, image_fid, file_name, file_fid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, link.ID, link.Name, link.Description, link.ImageName, link.ImageFileID, link.FileName, link.FileFileID)
	if err != nil {
		return domain.PostShortLink{}, err
	}
	return r.GetPostShortLink(ctx, link.ID)
}

// GetPostShortLink loads a post by id.
func (r *Repository) GetPostShortLink(ctx context.Context, id int64) (domain.PostShortLink, error) {
	var p domain.PostShortLink
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, image_name, image_fid, file_name, file_fid, created_at, updated_at
		FROM post_short_links
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.ImageName, &p.ImageFileID, &p.FileName, &p.FileFileID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PostShortLink{}, domain.ErrPostShortLinkNotFound
		}
		return domain.PostShortLink{}, err
	}
	return p, nil
}
