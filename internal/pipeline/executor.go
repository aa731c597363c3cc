package pipeline

import (
	"context"
	"sync"
)

// Executor serialises work per chat: updates of different chats run concurrently,
// updates of one chat run one at a time.
type Executor struct {
	mu    sync.Mutex
	chats map[int64]*chatLock
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

// NewExecutor creates an executor.
func NewExecutor() *Executor {
	return &Executor{chats: make(map[int64]*chatLock)}
}

// Do runs fn while holding the lock of chatID. It returns ctx's error when the
// context ends before the lock is acquired.
func (e *Executor) Do(ctx context.Context, chatID int64, fn func(ctx context.Context) error) error {
	l := e.acquire(chatID)
	defer e.release(chatID, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return fn(ctx)
}

func (e *Executor) acquire(chatID int64) *chatLock {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.chats[chatID]
	if !ok {
		l = &chatLock{sem: make(chan struct{}, 1)}
		e.chats[chatID] = l
	}
	l.refs++
	return l
}

func (e *Executor) release(chatID int64, l *chatLock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.chats, chatID)
	}
}

// Len is the number of chats with pending or running work.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chats)
}
