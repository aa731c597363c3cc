// Package domain holds the conversational model of the bot: chat state, search
// sessions, offers, users and post short links. It has no I/O.
package domain

import (
	"fmt"
	"time"
)

// Mode is the expert persona currently serving a chat.
type Mode string

const (
	ModeGeneral          Mode = "general"
	ModeSearch           Mode = "search"
	ModeFinance          Mode = "finance"
	ModeEstateNews       Mode = "estate_news"
	ModeContactCollector Mode = "contact_collector"
	ModeManager          Mode = "manager"
)

// CloseManagerChat is the reply-keyboard button that ends a manager conversation.
const CloseManagerChat = "Close chat with manager"

var validModes = map[Mode]bool{
	ModeGeneral:          true,
	ModeSearch:           true,
	ModeFinance:          true,
	ModeEstateNews:       true,
	ModeContactCollector: true,
	ModeManager:          true,
}

// ParseMode validates a persisted mode value.
func ParseMode(value string) (Mode, error) {
	mode := Mode(value)
	if !validModes[mode] {
		return "", fmt.Errorf("unknown mode %q", value)
	}
	return mode, nil
}

// ChatState is the per-chat conversational record.
type ChatState struct {
	ID                   int64
	ChatID               int64
	Mode                 Mode
	TransferredToManager bool
	MessageCount         int
	SearchCount          int
	FinanceCount         int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewChatState returns a fresh state for chatID in general mode.
func NewChatState(chatID int64) ChatState {
	return ChatState{ChatID: chatID, Mode: ModeGeneral}
}

// EffectiveMode is the mode the router dispatches on. A transferred chat stays
// with the manager until the chat is explicitly closed.
func (s ChatState) EffectiveMode() Mode {
	if s.TransferredToManager {
		return ModeManager
	}
	return s.Mode
}

// InManagerChat reports whether a human manager owns the conversation.
func (s ChatState) InManagerChat() bool {
	return s.EffectiveMode() == ModeManager
}

// EngagementCount is the number of completed searches and finance models.
func (s ChatState) EngagementCount() int {
	return s.SearchCount + s.FinanceCount
}
