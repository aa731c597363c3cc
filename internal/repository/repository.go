// Package repository is the State Store: raw SQL over pgxpool for chat states,
// search sessions, users, post short links, conversation history and CRM associations.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// StateRepository persists chat states and their counters.
type StateRepository interface {
	GetState(ctx context.Context, chatID int64) (domain.ChatState, error)
	CreateState(ctx context.Context, chatID int64) (domain.ChatState, error)
	IncrementMessageCount(ctx context.Context, chatID int64) (domain.ChatState, error)
	IncrementSearchCount(ctx context.Context, chatID int64) (domain.ChatState, error)
	IncrementFinanceCount(ctx context.Context, chatID int64) (domain.ChatState, error)
	SetMode(ctx context.Context, chatID int64, mode domain.Mode) (domain.ChatState, error)
	SetTransferredToManager(ctx context.Context, chatID int64, transferred bool, mode domain.Mode) (domain.ChatState, error)
	DeleteState(ctx context.Context, chatID int64) error
}

// SearchRepository persists search sessions.
type SearchRepository interface {
	GetSearchSession(ctx context.Context, stateID int64) (domain.SearchSession, error)
	SaveSearchSession(ctx context.Context, session domain.SearchSession) (domain.SearchSession, error)
	UpdateSearchCursor(ctx context.Context, session domain.SearchSession) error
	DeleteSearchSession(ctx context.Context, stateID int64) error
	DeleteStaleSearchSessions(ctx context.Context, before time.Time) (int64, error)
}

// UserRepository persists user records.
type UserRepository interface {
	GetUser(ctx context.Context, chatID int64) (domain.User, error)
	CreateUser(ctx context.Context, chatID int64, source domain.SourceType) (domain.User, error)
	SetBotBlocked(ctx context.Context, chatID int64, blocked bool) error
	SetHasContact(ctx context.Context, chatID int64) error
}

// PostLinkRepository persists post short links.
type PostLinkRepository interface {
	CreatePostShortLink(ctx context.Context, link domain.PostShortLink) (domain.PostShortLink, error)
	GetPostShortLink(ctx context.Context, id int64) (domain.PostShortLink, error)
}

// MessageRepository persists the LLM conversation history.
type MessageRepository interface {
	AppendMessage(ctx context.Context, stateID int64, mode domain.Mode, role domain.Role, text string) error
	ListMessages(ctx context.Context, stateID int64, mode domain.Mode, limit int) ([]domain.Message, error)
	ClearMessages(ctx context.Context, stateID int64) error
}

// AssociationRepository persists chat to CRM entity mappings.
type AssociationRepository interface {
	GetAssociation(ctx context.Context, chatID int64) (Association, error)
	GetAssociationByCRMChat(ctx context.Context, crmChatID string) (Association, error)
	SaveAssociation(ctx context.Context, assoc Association) error
	UpdateAssociationStatus(ctx context.Context, chatID int64, status string) error
}

// Store is the full capability set used by the orchestrator.
type Store interface {
	StateRepository
	SearchRepository
	UserRepository
	PostLinkRepository
	MessageRepository
	AssociationRepository
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Compile-time check that Repository implements Store.
var _ Store = (*Repository)(nil)
