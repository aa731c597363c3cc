// Package repotest provides an in-memory Store for handler and pipeline tests.
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
)

// Memory is a goroutine-safe in-memory repository.Store.
type Memory struct {
	mu           sync.Mutex
	nextID       int64
	states       map[int64]domain.ChatState
	sessions     map[int64]domain.SearchSession
	users        map[int64]domain.User
	posts        map[int64]domain.PostShortLink
	messages     map[int64][]domain.Message
	associations map[int64]repository.Association
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		states:       make(map[int64]domain.ChatState),
		sessions:     make(map[int64]domain.SearchSession),
		users:        make(map[int64]domain.User),
		posts:        make(map[int64]domain.PostShortLink),
		messages:     make(map[int64][]domain.Message),
		associations: make(map[int64]repository.Association),
	}
}

var _ repository.Store = (*Memory)(nil)

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) GetState(_ context.Context, chatID int64) (domain.ChatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[chatID]
	if !ok {
		return domain.ChatState{}, domain.ErrStateNotFound
	}
	return s, nil
}

func (m *Memory) CreateState(_ context.Context, chatID int64) (domain.ChatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[chatID]; ok {
		return s, nil
	}
	s := domain.NewChatState(chatID)
	s.ID = m.id()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.states[chatID] = s
	return s, nil
}

func (m *Memory) update(chatID int64, fn func(*domain.ChatState)) (domain.ChatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[chatID]
	if !ok {
		return domain.ChatState{}, domain.ErrStateNotFound
	}
	fn(&s)
	s.UpdatedAt = time.Now()
	m.states[chatID] = s
	return s, nil
}

func (m *Memory) IncrementMessageCount(_ context.Context, chatID int64) (domain.ChatState, error) {
	return m.update(chatID, func(s *domain.ChatState) { s.MessageCount++ })
}

func (m *Memory) IncrementSearchCount(_ context.Context, chatID int64) (domain.ChatState, error) {
	return m.update(chatID, func(s *domain.ChatState) { s.SearchCount++ })
}

func (m *Memory) IncrementFinanceCount(_ context.Context, chatID int64) (domain.ChatState, error) {
	return m.update(chatID, func(s *domain.ChatState) { s.FinanceCount++ })
}

func (m *Memory) SetMode(_ context.Context, chatID int64, mode domain.Mode) (domain.ChatState, error) {
	return m.update(chatID, func(s *domain.ChatState) { s.Mode = mode })
}

func (m *Memory) SetTransferredToManager(_ context.Context, chatID int64, transferred bool, mode domain.Mode) (domain.ChatState, error) {
	return m.update(chatID, func(s *domain.ChatState) {
		s.TransferredToManager = transferred
		s.Mode = mode
	})
}

func (m *Memory) DeleteState(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[chatID]; ok {
		delete(m.sessions, s.ID)
		delete(m.messages, s.ID)
	}
	delete(m.states, chatID)
	return nil
}

func (m *Memory) GetSearchSession(_ context.Context, stateID int64) (domain.SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[stateID]
	if !ok {
		return domain.SearchSession{}, domain.ErrSearchSessionNotFound
	}
	s.Offers = append([]domain.Offer(nil), s.Offers...)
	return s, nil
}

func (m *Memory) SaveSearchSession(_ context.Context, session domain.SearchSession) (domain.SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = m.id()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	m.sessions[session.StateID] = session
	return session, nil
}

func (m *Memory) UpdateSearchCursor(_ context.Context, session domain.SearchSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[session.StateID]
	if !ok {
		return domain.ErrSearchSessionNotFound
	}
	stored.CurrentEstateIndex = session.CurrentEstateIndex
	stored.CurrentOfferIndex = session.CurrentOfferIndex
	stored.UpdatedAt = time.Now()
	m.sessions[session.StateID] = stored
	return nil
}

func (m *Memory) DeleteSearchSession(_ context.Context, stateID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, stateID)
	return nil
}

func (m *Memory) DeleteStaleSearchSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) GetUser(_ context.Context, chatID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[chatID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) CreateUser(_ context.Context, chatID int64, source domain.SourceType) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[chatID]; ok {
		return u, nil
	}
	u := domain.User{ID: m.id(), ChatID: chatID, SourceType: source, CreatedAt: time.Now()}
	m.users[chatID] = u
	return u, nil
}

func (m *Memory) SetBotBlocked(_ context.Context, chatID int64, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[chatID]; ok {
		u.IsBotBlocked = blocked
		m.users[chatID] = u
	}
	return nil
}

func (m *Memory) SetHasContact(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[chatID]; ok {
		u.HasContact = true
		m.users[chatID] = u
	}
	return nil
}

func (m *Memory) CreatePostShortLink(_ context.Context, link domain.PostShortLink) (domain.PostShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[link.ID]; ok {
		return p, nil
	}
	link.CreatedAt = time.Now()
	m.posts[link.ID] = link
	return link, nil
}

func (m *Memory) GetPostShortLink(_ context.Context, id int64) (domain.PostShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.PostShortLink{}, domain.ErrPostShortLinkNotFound
	}
	return p, nil
}

func (m *Memory) AppendMessage(_ context.Context, stateID int64, mode domain.Mode, role domain.Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[stateID] = append(m.messages[stateID], domain.Message{
		ID: m.id(), StateID: stateID, Mode: mode, Role: role, Text: text, CreatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) ListMessages(_ context.Context, stateID int64, mode domain.Mode, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var filtered []domain.Message
	for _, msg := range m.messages[stateID] {
		if msg.Mode == mode {
			filtered = append(filtered, msg)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func (m *Memory) ClearMessages(_ context.Context, stateID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, stateID)
	return nil
}

func (m *Memory) GetAssociation(_ context.Context, chatID int64) (repository.Association, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.associations[chatID]
	if !ok {
		return repository.Association{}, repository.ErrAssociationNotFound
	}
	return a, nil
}

func (m *Memory) GetAssociationByCRMChat(_ context.Context, crmChatID string) (repository.Association, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.associations {
		if a.CRMChatID != "" && a.CRMChatID == crmChatID {
			return a, nil
		}
	}
	return repository.Association{}, repository.ErrAssociationNotFound
}

func (m *Memory) SaveAssociation(_ context.Context, a repository.Association) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.associations[a.ChatID] = a
	return nil
}

func (m *Memory) UpdateAssociationStatus(_ context.Context, chatID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.associations[chatID]
	if !ok {
		return repository.ErrAssociationNotFound
	}
	a.Status = status
	m.associations[chatID] = a
	return nil
}

// Messages returns a copy of the stored history of a state.
func (m *Memory) Messages(stateID int64) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages[stateID]...)
}
