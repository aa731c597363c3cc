package domain

import "time"

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one persisted turn of the LLM conversation for a mode.
type Message struct {
	ID        int64
	StateID   int64
	Mode      Mode
	Role      Role
	Text      string
	CreatedAt time.Time
}
