// Package events defines the bot's domain events on top of the platform bus.
package events

import (
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates the process-wide bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Telegram Domain Events
// =============================================================================

// UserBlocked is published when the provider refuses delivery because the user blocked the bot.
type UserBlocked struct {
	BaseEvent
	ChatID int64 `json:"chatId"`
}

func (e UserBlocked) EventName() string { return "telegram.user.blocked" }

// =============================================================================
// Operational Events
// =============================================================================

// InternalErrorRaised is published when an update failed with an internal error.
type InternalErrorRaised struct {
	BaseEvent
	TraceID    string `json:"traceId"`
	ChatID     int64  `json:"chatId"`
	UpdateType string `json:"updateType"`
	Error      string `json:"error"`
}

func (e InternalErrorRaised) EventName() string { return "ops.internal_error.raised" }
