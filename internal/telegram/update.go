package telegram

import (
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateType names the event classes the bot subscribes to.
type UpdateType string

const (
	UpdateMessage       UpdateType = "message"
	UpdateCallbackQuery UpdateType = "callback_query"
)

// AllowedUpdates is the list registered with setWebhook.
var AllowedUpdates = []string{string(UpdateMessage), string(UpdateCallbackQuery)}

// Sender describes the author of an update.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Update is the internal descriptor of one provider update.
type Update struct {
	ID           int
	Type         UpdateType
	ChatID       int64
	From         Sender
	MessageID    int
	Text         string
	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is a callback query.
func (u Update) IsCallback() bool {
	return u.Type == UpdateCallbackQuery
}

// Command returns the command name without the leading slash and its arguments.
// ok is false when the text is not a command.
func (u Update) Command() (name, args string, ok bool) {
	if u.Type != UpdateMessage || !strings.HasPrefix(u.Text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(strings.TrimPrefix(u.Text, "/"), " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return head, strings.TrimSpace(rest), true
}

// ParseUpdate decodes a webhook body. Updates of other classes return ok=false.
func ParseUpdate(body []byte) (Update, bool, error) {
	var raw tgbotapi.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		return Update{}, false, fmt.Errorf("decode update: %w", err)
	}
	u, ok := FromAPI(raw)
	return u, ok, nil
}

// FromAPI converts a library update. Only messages and callback queries are supported.
func FromAPI(raw tgbotapi.Update) (Update, bool) {
	switch {
	case raw.Message != nil && raw.Message.Chat != nil:
		m := raw.Message
		return Update{
			ID:        raw.UpdateID,
			Type:      UpdateMessage,
			ChatID:    m.Chat.ID,
			From:      senderFrom(m.From),
			MessageID: m.MessageID,
			Text:      m.Text,
		}, true
	case raw.CallbackQuery != nil:
		q := raw.CallbackQuery
		u := Update{
			ID:           raw.UpdateID,
			Type:         UpdateCallbackQuery,
			From:         senderFrom(q.From),
			CallbackID:   q.ID,
			CallbackData: q.Data,
		}
		if q.Message != nil && q.Message.Chat != nil {
			u.ChatID = q.Message.Chat.ID
			u.MessageID = q.Message.MessageID
		} else if q.From != nil {
			u.ChatID = q.From.ID
		}
		return u, true
	default:
		return Update{}, false
	}
}

func senderFrom(u *tgbotapi.User) Sender {
	if u == nil {
		return Sender{}
	}
	return Sender{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}
