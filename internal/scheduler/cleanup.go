package scheduler

import (
	"context"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/go-co-op/gocron/v2"
)

const (
	defaultSearchCleanupInterval = time.Hour
	defaultSearchSessionTTL      = 72 * time.Hour
)

// SearchSessionSweeper removes search sessions untouched since a cutoff.
type SearchSessionSweeper interface {
	DeleteStaleSearchSessions(ctx context.Context, before time.Time) (int64, error)
}

// SearchSessionCleanup periodically drops abandoned search sessions.
type SearchSessionCleanup struct {
	store    SearchSessionSweeper
	log      *logger.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
}

func NewSearchSessionCleanup(store SearchSessionSweeper, log *logger.Logger, interval, ttl time.Duration) *SearchSessionCleanup {
	if interval <= 0 {
		interval = defaultSearchCleanupInterval
	}
	if ttl <= 0 {
		ttl = defaultSearchSessionTTL
	}
	return &SearchSessionCleanup{store: store, log: log, interval: interval, ttl: ttl, now: time.Now}
}

// Register adds the sweep to s. It runs once immediately and then every interval.
func (c *SearchSessionCleanup) Register(ctx context.Context, s gocron.Scheduler) error {
	_, err := s.NewJob(
		gocron.DurationJob(c.interval),
		gocron.NewTask(func() { c.Sweep(ctx) }),
		gocron.WithName("search-session-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	return err
}

// Sweep deletes sessions older than the ttl and returns how many went.
func (c *SearchSessionCleanup) Sweep(ctx context.Context) int64 {
	deleted, err := c.store.DeleteStaleSearchSessions(ctx, c.now().Add(-c.ttl))
	if err != nil {
		c.log.Warn("search session cleanup failed", "error", err)
		return 0
	}
	if deleted > 0 {
		c.log.Info("search session cleanup deleted stale sessions", "deleted", deleted)
	}
	return deleted
}
