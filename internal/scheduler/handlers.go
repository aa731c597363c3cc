package scheduler

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
)

// BlockedMarker records that a user blocked the bot.
type BlockedMarker interface {
	SetBotBlocked(ctx context.Context, chatID int64, blocked bool) error
}

// Subscribers turns bus events into background work.
type Subscribers struct {
	alerts AlertEnqueuer
	users  BlockedMarker
	log    *logger.Logger
}

func NewSubscribers(alerts AlertEnqueuer, users BlockedMarker, log *logger.Logger) *Subscribers {
	return &Subscribers{alerts: alerts, users: users, log: log}
}

// RegisterHandlers subscribes to the events the bot reacts to out of band.
func (s *Subscribers) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.InternalErrorRaised{}.EventName(), s)
	bus.Subscribe(events.UserBlocked{}.EventName(), s)
}

func (s *Subscribers) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.InternalErrorRaised:
		if s.alerts == nil {
			s.log.WithContext(ctx).Warn("internal error not alerted, queue disabled", "trace_id", e.TraceID)
			return nil
		}
		return s.alerts.EnqueueInternalAlert(ctx, InternalAlertPayload{
			TraceID:    e.TraceID,
			ChatID:     e.ChatID,
			UpdateType: e.UpdateType,
			Error:      e.Error,
		})
	case events.UserBlocked:
		s.log.WithContext(ctx).Info("user blocked the bot", "chat_id", e.ChatID)
		return s.users.SetBotBlocked(ctx, e.ChatID, true)
	default:
		return nil
	}
}
