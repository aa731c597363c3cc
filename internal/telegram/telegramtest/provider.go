// Package telegramtest provides a recording telegram.Provider for tests.
package telegramtest

import (
	"context"
	"sync"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
)

// Kind of a recorded call.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
	KindFile     Kind = "file"
	KindCallback Kind = "callback"
)

// Sent is one recorded Provider call.
type Sent struct {
	Kind     Kind
	ChatID   int64
	Text     string
	FileID   string
	Name     string
	Data     []byte
	Keyboard *telegram.Keyboard
}

// Provider records everything the bot sends. Membership answers come from Members.
type Provider struct {
	mu      sync.Mutex
	sent    []Sent
	nextID  int
	Members map[int64]bool
	Err     error
	Webhook struct{ URL, Secret string }
}

var _ telegram.Provider = (*Provider)(nil)

// New creates an empty recording provider.
func New() *Provider {
	return &Provider{Members: map[int64]bool{}}
}

func (p *Provider) record(s Sent) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return 0, p.Err
	}
	p.sent = append(p.sent, s)
	p.nextID++
	return p.nextID, nil
}

func (p *Provider) SendText(_ context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error) {
	return p.record(Sent{Kind: KindText, ChatID: chatID, Text: text, Keyboard: kb})
}

func (p *Provider) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb *telegram.Keyboard) (int, error) {
	return p.record(Sent{Kind: KindPhoto, ChatID: chatID, FileID: fileID, Text: caption, Keyboard: kb})
}

func (p *Provider) SendDocument(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return p.record(Sent{Kind: KindDocument, ChatID: chatID, FileID: fileID, Text: caption})
}

func (p *Provider) SendFile(_ context.Context, chatID int64, name string, data []byte, caption string) (int, error) {
	return p.record(Sent{Kind: KindFile, ChatID: chatID, Name: name, Data: data, Text: caption})
}

func (p *Provider) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := p.record(Sent{Kind: KindCallback, Name: callbackID, Text: text})
	return err
}

func (p *Provider) IsChannelMember(_ context.Context, _ string, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Members[userID], nil
}

func (p *Provider) SetWebhook(_ context.Context, url, secret string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Webhook.URL, p.Webhook.Secret = url, secret
	return nil
}

// Sent returns a copy of all recorded calls.
func (p *Provider) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.sent...)
}

// Texts returns the texts and captions of recorded messages, skipping callback answers.
func (p *Provider) Texts() []string {
	var out []string
	for _, s := range p.Sent() {
		if s.Kind != KindCallback {
			out = append(out, s.Text)
		}
	}
	return out
}

// Last returns the last recorded message that is not a callback answer.
func (p *Provider) Last() Sent {
	sent := p.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].Kind != KindCallback {
			return sent[i]
		}
	}
	return Sent{}
}

// Callbacks returns the recorded callback answers.
func (p *Provider) Callbacks() []Sent {
	var out []Sent
	for _, s := range p.Sent() {
		if s.Kind == KindCallback {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}
