package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeBotAPI answers Bot API methods with canned results and records every call.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	results map[string]string
	server  *httptest.Server
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{results: map[string]string{
		"getMe":       `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"wewall_bot"}}`,
		"sendMessage": `{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":111,"type":"private"}}}`,
		"sendPhoto":   `{"ok":true,"result":{"message_id":11,"date":0,"chat":{"id":111,"type":"private"}}}`,
		"setWebhook":  `{"ok":true,"result":true}`,
	}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_ = r.ParseMultipartForm(1 << 20)
		body, _ := io.ReadAll(r.Body)
		form := r.Form
		if len(form) == 0 && len(body) > 0 {
			form, _ = url.ParseQuery(string(body))
		}

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{Method: method, Form: form})
		result, ok := f.results[method]
		f.mu.Unlock()

		if !ok {
			result = `{"ok":true,"result":true}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, result)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBotAPI) set(method, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}

func (f *fakeBotAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type tgConfig struct{ endpoint string }

func (c tgConfig) GetTelegramToken() string          { return "TOKEN" }
func (c tgConfig) GetTelegramAPIEndpoint() string    { return c.endpoint }
func (c tgConfig) GetBotUsername() string            { return "wewall_bot" }
func (c tgConfig) GetWebhookDomain() string          { return "bot.example.com" }
func (c tgConfig) GetWebhookPrefix() string          { return "/tg" }
func (c tgConfig) GetSecretToken() string            { return "secret" }
func (c tgConfig) GetChannelUsername() string        { return "@wewall" }
func (c tgConfig) GetOutboundTimeout() time.Duration { return 5 * time.Second }

func newTestClient(t *testing.T, bus events.Bus) (*Client, *fakeBotAPI) {
	t.Helper()
	api := newFakeBotAPI(t)
	c, err := NewClient(tgConfig{endpoint: api.server.URL + "/bot%s/%s"}, bus, logger.Nop())
	require.NoError(t, err)
	return c, api
}

func TestSendTextWithInlineKeyboard(t *testing.T) {
	c, api := newTestClient(t, nil)
	assert.Equal(t, "wewall_bot", c.Username())

	id, err := c.SendText(context.Background(), 111, "Привет", InlineRows(Button{Text: "Найти", Data: "wewall_expert:to_search"}))
	require.NoError(t, err)
	assert.Equal(t, 10, id)

	calls := api.callsTo("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "111", calls[0].Form.Get("chat_id"))
	assert.Equal(t, "Привет", calls[0].Form.Get("text"))

	var markup struct {
		InlineKeyboard [][]struct {
			Text         string `json:"text"`
			CallbackData string `json:"callback_data"`
		} `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(calls[0].Form.Get("reply_markup")), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "wewall_expert:to_search", markup.InlineKeyboard[0][0].CallbackData)
}

func TestSendTextSplitsLongMessages(t *testing.T) {
	c, api := newTestClient(t, nil)
	long := strings.Repeat("а", MaxMessageLength+10)

	_, err := c.SendText(context.Background(), 111, long, ReplyButtons("Close chat with manager"))
	require.NoError(t, err)

	calls := api.callsTo("sendMessage")
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Form.Get("reply_markup"))
	assert.Contains(t, calls[1].Form.Get("reply_markup"), "Close chat with manager")
}

func TestBlockedUserPublishesEvent(t *testing.T) {
	bus := events.NewInMemoryBus(nil)
	var blocked int64
	bus.Subscribe(events.UserBlocked{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		blocked = e.(events.UserBlocked).ChatID
		return nil
	}))

	c, api := newTestClient(t, bus)
	api.set("sendMessage", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

	_, err := c.SendText(context.Background(), 111, "hi", nil)
	bus.Wait()

	require.ErrorIs(t, err, ErrBotBlocked)
	assert.True(t, apperr.Is(err, apperr.KindPolicy))
	assert.EqualValues(t, 111, blocked)
}

func TestProviderFailureIsExternal(t *testing.T) {
	c, api := newTestClient(t, nil)
	api.set("sendMessage", `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)

	_, err := c.SendText(context.Background(), 111, "hi", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))
}

func TestSetWebhookSendsSecretAndAllowedUpdates(t *testing.T) {
	c, api := newTestClient(t, nil)

	require.NoError(t, c.SetWebhook(context.Background(), "https://bot.example.com/tg/update", "secret"))

	calls := api.callsTo("setWebhook")
	require.Len(t, calls, 1)
	assert.Equal(t, "https://bot.example.com/tg/update", calls[0].Form.Get("url"))
	assert.Equal(t, "secret", calls[0].Form.Get("secret_token"))
	assert.JSONEq(t, `["message","callback_query"]`, calls[0].Form.Get("allowed_updates"))
}

func TestIsChannelMember(t *testing.T) {
	c, api := newTestClient(t, nil)

	for status, want := range map[string]bool{"member": true, "creator": true, "left": false, "kicked": false} {
		api.set("getChatMember", fmt.Sprintf(`{"ok":true,"result":{"status":%q,"user":{"id":5,"is_bot":false,"first_name":"u"}}}`, status))
		got, err := c.IsChannelMember(context.Background(), "@wewall", 5)
		require.NoError(t, err)
		assert.Equal(t, want, got, status)
	}

	api.set("getChatMember", `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`)
	got, err := c.IsChannelMember(context.Background(), "@wewall", 5)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("x", 70) + "\n" + strings.Repeat("y", 40)
	parts := splitText(text, 100)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("x", 70)+"\n", parts[0])
	assert.Equal(t, strings.Repeat("y", 40), parts[1])
}
