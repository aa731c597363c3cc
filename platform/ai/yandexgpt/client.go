// Package yandexgpt wraps the YandexGPT completion API behind a small Completer interface.
package yandexgpt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"

	yandexgpt "github.com/sheeiavellie/go-yandexgpt"
)

// Role is the author of a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role Role
	Text string
}

// Completer produces the assistant's next message for a conversation.
type Completer interface {
	Complete(ctx context.Context, system string, history []Message) (string, error)
}

// Config for the YandexGPT client.
type Config struct {
	APIKey      string
	FolderID    string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type completeFunc func(ctx context.Context, req yandexgpt.YandexGPTRequest) (string, error)

// Client calls YandexGPT. A zero APIKey yields a client that always fails.
type Client struct {
	cfg      Config
	modelURI string
	complete completeFunc
}

var _ Completer = (*Client)(nil)

// NewClient creates a client for the 32k YandexGPT 4 model.
func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:      cfg,
		modelURI: yandexgpt.MakeModelURI(cfg.FolderID, yandexgpt.YandexGPT4Model32k),
	}
	if cfg.APIKey == "" {
		c.complete = func(context.Context, yandexgpt.YandexGPTRequest) (string, error) {
			return "", errors.New("yandexgpt api key is not configured")
		}
		return c
	}

	api := yandexgpt.NewYandexGPTClientWithAPIKey(cfg.APIKey)
	c.complete = func(ctx context.Context, req yandexgpt.YandexGPTRequest) (string, error) {
		resp, err := api.GetCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Result.Alternatives) == 0 {
			return "", errors.New("empty completion")
		}
		return resp.Result.Alternatives[0].Message.Text, nil
	}
	return c
}

// Complete sends the system prompt followed by history and returns the model's answer.
func (c *Client) Complete(ctx context.Context, system string, history []Message) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	text, err := c.complete(ctx, c.buildRequest(system, history))
	if err != nil {
		return "", apperr.External("yandexgpt completion", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) buildRequest(system string, history []Message) yandexgpt.YandexGPTRequest {
	messages := make([]yandexgpt.YandexGPTMessage, 0, len(history)+1)
	if system != "" {
		messages = append(messages, yandexgpt.YandexGPTMessage{
			Role: yandexgpt.YandexGPTMessageRoleSystem,
			Text: system,
		})
	}
	for _, m := range history {
		msg := yandexgpt.YandexGPTMessage{Text: m.Text}
		switch m.Role {
		case RoleSystem:
			msg.Role = yandexgpt.YandexGPTMessageRoleSystem
		case RoleAssistant:
			msg.Role = yandexgpt.YandexGPTMessageRoleAssistant
		default:
			msg.Role = yandexgpt.YandexGPTMessageRoleUser
		}
		messages = append(messages, msg)
	}

	return yandexgpt.YandexGPTRequest{
		ModelURI: c.modelURI,
		CompletionOptions: yandexgpt.YandexGPTCompletionOptions{
			Stream:      false,
			Temperature: float32(c.cfg.Temperature),
			MaxTokens:   c.cfg.MaxTokens,
		},
		Messages: messages,
	}
}

// Scripted is a Completer that replays fixed answers. Used by tests and local runs without credentials.
type Scripted struct {
	Answers []string
	Calls   []ScriptedCall
}

// ScriptedCall records one Complete invocation.
type ScriptedCall struct {
	System  string
	History []Message
}

// Complete returns the next scripted answer.
func (s *Scripted) Complete(_ context.Context, system string, history []Message) (string, error) {
	s.Calls = append(s.Calls, ScriptedCall{System: system, History: append([]Message(nil), history...)})
	if len(s.Answers) == 0 {
		return "", fmt.Errorf("scripted completer: no answer left for call %d", len(s.Calls))
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}
