// Package alert posts internal error alerts to Slack.
package alert

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/scheduler"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	goslack "github.com/slack-go/slack"
)

const (
	maxBlockTextLength = 2900
	postTimeout        = 10 * time.Second
)

// Notifier sends alerts to one Slack channel.
type Notifier struct {
	api       *goslack.Client
	channelID string
	log       *logger.Logger
}

// NewNotifier returns nil when alerting is not configured.
func NewNotifier(cfg config.AlertConfig, log *logger.Logger, opts ...goslack.Option) *Notifier {
	if !cfg.IsAlertEnabled() {
		return nil
	}
	return &Notifier{
		api:       goslack.New(cfg.GetSlackToken(), opts...),
		channelID: cfg.GetSlackChannelID(),
		log:       log,
	}
}

// NotifyInternalError posts one alert.
func (n *Notifier) NotifyInternalError(ctx context.Context, payload scheduler.InternalAlertPayload) error {
	if n == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	_, _, err := n.api.PostMessageContext(ctx, n.channelID,
		goslack.MsgOptionText(fallbackText(payload), false),
		goslack.MsgOptionBlocks(BuildInternalErrorMessage(payload)...),
	)
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	n.log.WithContext(ctx).Info("internal error alert sent", "trace_id", payload.TraceID)
	return nil
}

// BuildInternalErrorMessage renders an alert as Block Kit blocks.
func BuildInternalErrorMessage(payload scheduler.InternalAlertPayload) []goslack.Block {
	header := fmt.Sprintf(":rotating_light: *Internal error* in `%s` update", orUnknown(payload.UpdateType))
	details := fmt.Sprintf("*Trace:* `%s`\n*Chat:* `%d`", orUnknown(payload.TraceID), payload.ChatID)
	errText := "```" + truncateForSlack(payload.Error) + "```"

	return []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false), nil, nil),
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, details, false, false), nil, nil),
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, errText, false, false), nil, nil),
	}
}

func fallbackText(payload scheduler.InternalAlertPayload) string {
	return fmt.Sprintf("Internal error, trace %s", orUnknown(payload.TraceID))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncateForSlack(text string) string {
	if utf8.RuneCountInString(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBlockTextLength]) + "…"
}
