package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
)

// OutboundMirror imports bot messages into the CRM.
type OutboundMirror interface {
	ImportOutbound(ctx context.Context, chatID int64, text string) error
}

// Responder sends bot output to the user and imports each message into the CRM
// right after it was delivered, so the CRM sees them in emission order.
type Responder struct {
	provider telegram.Provider
	mirror   OutboundMirror
	log      *logger.Logger
}

// NewResponder creates a responder.
func NewResponder(provider telegram.Provider, mirror OutboundMirror, log *logger.Logger) *Responder {
	return &Responder{provider: provider, mirror: mirror, log: log}
}

// Text sends a text message. Blank text is dropped since the provider rejects it.
func (r *Responder) Text(ctx context.Context, chatID int64, text string, kb *telegram.Keyboard) error {
	if strings.TrimSpace(text) == "" {
		r.log.WithContext(ctx).Warn("blank message dropped")
		return nil
	}
	if _, err := r.provider.SendText(ctx, chatID, text, kb); err != nil {
		return err
	}
	return r.mirror.ImportOutbound(ctx, chatID, text)
}

// Photo sends a photo by file id.
func (r *Responder) Photo(ctx context.Context, chatID int64, fileID, caption string, kb *telegram.Keyboard) error {
	if _, err := r.provider.SendPhoto(ctx, chatID, fileID, caption, kb); err != nil {
		return err
	}
	return r.mirror.ImportOutbound(ctx, chatID, withAttachment("photo", caption))
}

// Document sends a stored document by file id.
func (r *Responder) Document(ctx context.Context, chatID int64, fileID, name string) error {
	if _, err := r.provider.SendDocument(ctx, chatID, fileID, ""); err != nil {
		return err
	}
	return r.mirror.ImportOutbound(ctx, chatID, withAttachment("document", name))
}

// File uploads a generated file.
func (r *Responder) File(ctx context.Context, chatID int64, name string, data []byte) error {
	if _, err := r.provider.SendFile(ctx, chatID, name, data, ""); err != nil {
		return err
	}
	return r.mirror.ImportOutbound(ctx, chatID, withAttachment("file", name))
}

// Callback answers a callback query. Nothing is mirrored.
func (r *Responder) Callback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	return r.provider.AnswerCallback(ctx, callbackID, text)
}

func withAttachment(kind, text string) string {
	if text == "" {
		return fmt.Sprintf("[%s]", kind)
	}
	return fmt.Sprintf("[%s] %s", kind, text)
}
