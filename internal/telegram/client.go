// Package telegram adapts the Telegram Bot API to the operations the bot needs:
// sending text, photos and documents, answering callbacks, checking channel
// membership and registering the webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// MaxMessageLength is the provider's limit for a single text message.
const MaxMessageLength = 4096

// ErrBotBlocked is returned when the user blocked the bot.
var ErrBotBlocked = apperr.Policy("bot was blocked by the user")

// Provider is the set of provider operations used by the bot.
type Provider interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *Keyboard) (int, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendFile(ctx context.Context, chatID int64, name string, data []byte, caption string) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error)
	SetWebhook(ctx context.Context, url, secret string) error
}

// Client implements Provider over go-telegram-bot-api.
type Client struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	bus     events.Bus
	log     *logger.Logger
}

var _ Provider = (*Client)(nil)

// NewClient connects to the Bot API. The constructor performs a getMe call.
func NewClient(cfg config.TelegramConfig, bus events.Bus, log *logger.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.GetOutboundTimeout()}

	endpoint := cfg.GetTelegramAPIEndpoint()
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.GetTelegramToken(), endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot api: %w", err)
	}

	return &Client{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(30), 30),
		bus:     bus,
		log:     log,
	}, nil
}

// Username returns the bot's username as reported by getMe.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendText sends text, splitting it into several messages when it exceeds the limit.
// The keyboard is attached to the last part. The id of the last message is returned.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	parts := splitText(text, MaxMessageLength)
	var lastID int
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 {
			msg.ReplyMarkup = kb.markup()
		}
		sent, err := c.send(ctx, chatID, msg)
		if err != nil {
			return 0, err
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

// SendPhoto sends a photo by file id with an optional caption and keyboard.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *Keyboard) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.ReplyMarkup = kb.markup()
	sent, err := c.send(ctx, chatID, photo)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendDocument sends a document by file id.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = caption
	sent, err := c.send(ctx, chatID, doc)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendFile uploads data as a document named name.
func (c *Client) SendFile(ctx context.Context, chatID int64, name string, data []byte, caption string) (int, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	sent, err := c.send(ctx, chatID, doc)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// AnswerCallback acknowledges a callback query, optionally showing text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return apperr.External("answer callback query", err)
	}
	return nil
}

// IsChannelMember reports whether userID is subscribed to channel (e.g. "@wewall").
func (c *Client) IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) && tgErr.Code == http.StatusBadRequest {
			// user never interacted with the channel
			return false, nil
		}
		return false, apperr.External("get chat member", err)
	}

	switch {
	case member.IsCreator(), member.IsAdministrator():
		return true, nil
	case member.Status == "member":
		return true, nil
	case member.Status == "restricted":
		return member.IsMember, nil
	default:
		return false, nil
	}
}

// SetWebhook registers url with the secret token and the allowed update classes.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params := make(tgbotapi.Params)
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return fmt.Errorf("encode allowed updates: %w", err)
	}
	if _, err := c.bot.MakeRequest("setWebhook", params); err != nil {
		return apperr.External("set webhook", err)
	}
	c.log.Info("telegram webhook registered", "url", url)
	return nil
}

func (c *Client) send(ctx context.Context, chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	sent, err := c.bot.Send(msg)
	if err == nil {
		return sent, nil
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == http.StatusForbidden {
		c.log.WithContext(ctx).Warn("telegram delivery refused", "chat_id", strconv.FormatInt(chatID, 10), "error", tgErr.Message)
		if c.bus != nil {
			c.bus.Publish(ctx, events.UserBlocked{BaseEvent: events.NewBaseEvent(), ChatID: chatID})
		}
		return tgbotapi.Message{}, fmt.Errorf("send to %d: %w", chatID, ErrBotBlocked)
	}
	return tgbotapi.Message{}, apperr.External(fmt.Sprintf("send to %d", chatID), err)
}

// splitText cuts text into chunks of at most limit runes, preferring line breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
