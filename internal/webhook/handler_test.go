package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	apphttp "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http"
	httprouter "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/pipeline"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/postlink"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/prompts"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository/repotest"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram/telegramtest"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/ai/yandexgpt"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/httpkit"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const userChat int64 = 111

type testConfig struct{ crmEnabled bool }

func (testConfig) GetHTTPAddr() string               { return ":0" }
func (testConfig) GetSecretToken() string            { return config.DefaultSecretToken }
func (testConfig) GetWebhookPrefix() string          { return "/bot" }
func (testConfig) GetWebhookDomain() string          { return "bot.example.com" }
func (testConfig) GetCRMBaseURL() string             { return "" }
func (testConfig) GetCRMToken() string               { return "" }
func (testConfig) GetCRMMainPipelineID() int64       { return 100 }
func (testConfig) GetCRMAppealPipelineID() int64     { return 200 }
func (testConfig) GetCRMUsernameFieldID() int64      { return 0 }
func (testConfig) GetCRMLeadSourceFieldID() int64    { return 0 }
func (testConfig) GetOutboundTimeout() time.Duration { return time.Second }
func (c testConfig) IsCRMEnabled() bool              { return c.crmEnabled }
func (testConfig) GetThresholdHigh() int             { return 10 }
func (testConfig) GetThresholdActive() int           { return 25 }
func (testConfig) GetThresholdContact() int          { return 3 }

func (testConfig) GetCRMStatusIDs() map[string]int64 {
	return map[string]int64{
		crm.StatusChatWithBot:     1,
		crm.StatusHighEngagement:  2,
		crm.StatusActiveUser:      3,
		crm.StatusChatWithManager: 4,
	}
}

type crmCalls struct {
	contacts []crm.ContactInput
	leads    []crm.LeadInput
	chats    []int64
	inbound  []string
	imported []string
	importID []string
}

type fakeCRM struct {
	mu sync.Mutex
	crmCalls
}

// snapshot copies the recorded calls so assertions never hold the lock across a request.
func (f *fakeCRM) snapshot() crmCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return crmCalls{
		contacts: append([]crm.ContactInput(nil), f.contacts...),
		leads:    append([]crm.LeadInput(nil), f.leads...),
		chats:    append([]int64(nil), f.chats...),
		inbound:  append([]string(nil), f.inbound...),
		imported: append([]string(nil), f.imported...),
		importID: append([]string(nil), f.importID...),
	}
}

func (f *fakeCRM) CreateContact(_ context.Context, in crm.ContactInput) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, in)
	return int64(len(f.contacts)), nil
}

func (f *fakeCRM) UpdateContact(context.Context, int64, crm.ContactDetails) error { return nil }

func (f *fakeCRM) CreateLead(_ context.Context, in crm.LeadInput) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, in)
	return int64(len(f.leads)), nil
}

func (f *fakeCRM) EditLead(context.Context, int64, int64, int64) error { return nil }

func (f *fakeCRM) CreateChat(_ context.Context, _ int64, tgChatID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, tgChatID)
	return fmt.Sprintf("crm-chat-%d", tgChatID), nil
}

func (f *fakeCRM) SendMessage(_ context.Context, _, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, text)
	return nil
}

func (f *fakeCRM) ImportMessage(_ context.Context, _, msgID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, text)
	f.importID = append(f.importID, msgID)
	return nil
}

type fakeSchema struct{ up, down int }

func (s *fakeSchema) Up(context.Context) error   { s.up++; return nil }
func (s *fakeSchema) Down(context.Context) error { s.down++; return nil }

type stack struct {
	engine    *gin.Engine
	store     *repotest.Memory
	tg        *telegramtest.Provider
	catalogue *prompts.Store
	schema    *fakeSchema
}

// newStack wires the real pipeline and router behind the gin engine. A nil api
// leaves the CRM disabled.
func newStack(t *testing.T, api crm.API) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	cfg := testConfig{crmEnabled: api != nil}
	store := repotest.NewMemory()
	tg := telegramtest.New()
	catalogue, err := prompts.NewStore("", log)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mirror := crm.NewMirror(cfg, api, store, tg, rdb, log)
	posts := postlink.NewService(store, nil, "wewall_bot", log)

	r := router.New(router.Deps{
		Store:      store,
		Provider:   tg,
		Mirror:     mirror,
		LLM:        &yandexgpt.Scripted{},
		PostLinks:  posts,
		Catalogue:  catalogue,
		Engagement: cfg,
		Log:        log,
	})
	executor := pipeline.NewExecutor()
	p, err := pipeline.New(pipeline.Deps{
		Store:      store,
		Router:     r,
		Mirror:     mirror,
		Provider:   tg,
		Catalogue:  catalogue,
		Engagement: cfg,
		Tracer:     tracenoop.NewTracerProvider().Tracer("test"),
		Meter:      metricnoop.NewMeterProvider().Meter("test"),
		Bus:        events.NewInMemoryBus(log),
		Log:        log,
	}, executor)
	require.NoError(t, err)

	schema := &fakeSchema{}
	module := NewModule(Services{
		Updates:  p,
		Executor: executor,
		Manager:  mirror,
		States:   store,
		Posts:    posts,
		Provider: tg,
		Schema:   schema,
	}, cfg, validator.New(), log)

	engine := httprouter.New(&apphttp.App{Config: cfg, Logger: log, Modules: []apphttp.Module{module}})
	return &stack{engine: engine, store: store, tg: tg, catalogue: catalogue, schema: schema}
}

func (s *stack) post(t *testing.T, path string, body any, secret bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(http.MethodPost, "/bot"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if secret {
		req.Header.Set(httpkit.SecretTokenHeader, config.DefaultSecretToken)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func textUpdate(updateID, messageID int, text string) string {
	return fmt.Sprintf(`{"update_id":%d,"message":{"message_id":%d,"date":1700000000,`+
		`"chat":{"id":%d,"type":"private"},"from":{"id":%d,"is_bot":false,"first_name":"Иван","username":"ivan"},"text":%q}}`,
		updateID, messageID, userChat, userChat, text)
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) httpkit.StatusResponse {
	t.Helper()
	var resp httpkit.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUpdateWithoutSecretIsRejected(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/update", textUpdate(1, 1, "/start"), false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Wrong secret token !"}`, w.Body.String())
	_, err := s.store.GetState(context.Background(), userChat)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
	assert.Empty(t, s.tg.Sent())
}

func TestStartFromDirectLink(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/update", textUpdate(1, 1, "/start"), true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, httpkit.StatusOK, decodeStatus(t, w).Status)

	ctx := context.Background()
	user, err := s.store.GetUser(ctx, userChat)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDirectLink, user.SourceType)

	state, err := s.store.GetState(ctx, userChat)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeGeneral, state.Mode)
	assert.Equal(t, 1, state.MessageCount)

	assert.Equal(t, []string{s.catalogue.Text("greeting")}, s.tg.Texts())
}

func TestStartMirrorsConversationToCRM(t *testing.T) {
	api := &fakeCRM{}
	s := newStack(t, api)

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(1, 1, "/start"), true).Code)

	got := api.snapshot()
	require.Len(t, got.contacts, 1)
	assert.Equal(t, crm.ContactInput{Username: "ivan", FirstName: "Иван"}, got.contacts[0])
	require.Len(t, got.leads, 1)
	assert.Equal(t, int64(100), got.leads[0].PipelineID)
	assert.Equal(t, int64(1), got.leads[0].StatusID)
	assert.Equal(t, string(domain.SourceDirectLink), got.leads[0].Source)
	assert.Equal(t, []int64{userChat}, got.chats)
	assert.Equal(t, []string{s.catalogue.Text("greeting")}, got.imported)
	assert.Equal(t, []string{"/start"}, got.inbound)

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(2, 2, "/start"), true).Code)
	got = api.snapshot()
	assert.Len(t, got.contacts, 1)
	assert.Len(t, got.leads, 1)
	assert.Len(t, got.imported, 2)
	assert.Equal(t, []string{"bot-111-1-1", "bot-111-2-1"}, got.importID)
}

func TestRedeliveredUpdateImportsSameMessageIDs(t *testing.T) {
	api := &fakeCRM{}
	s := newStack(t, api)

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(5, 5, "/start"), true).Code)
	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(5, 5, "/start"), true).Code)

	got := api.snapshot()
	require.Len(t, got.importID, 2)
	assert.Equal(t, "bot-111-5-1", got.importID[0])
	assert.Equal(t, got.importID[0], got.importID[1])
}

func TestManagerReplySwitchesChatToManager(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/message/send", map[string]any{"tg_chat_id": userChat, "text": "Hello"}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	state, err := s.store.GetState(context.Background(), userChat)
	require.NoError(t, err)
	assert.True(t, state.TransferredToManager)
	assert.Equal(t, domain.ModeManager, state.Mode)

	last := s.tg.Last()
	assert.Equal(t, "Hello", last.Text)
	assert.Equal(t, [][]string{{domain.CloseManagerChat}}, last.Keyboard.Reply)
}

func TestManagerReplyForUnknownCRMChat(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/message/send", map[string]any{"crm_chat_id": "nope", "text": "Hello"}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, s.tg.Sent())
}

func TestManagerReplyValidation(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/message/send", map[string]any{"tg_chat_id": userChat, "text": "   "}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errValidation, decodeStatus(t, w).Message)
}

func TestMalformedManagerReplyFails(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/message/send", `{"tg_chat_id":`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errInvalidRequest, decodeStatus(t, w).Message)

	w = s.post(t, "/state/delete", `{"tg_chat_id":"abc"}`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, s.tg.Sent())
}

func TestStateDeleteThenStartStartsFresh(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(1, 1, "/start"), true).Code)
	require.Equal(t, http.StatusOK, s.post(t, "/message/send", map[string]any{"tg_chat_id": userChat, "text": "Hello"}, true).Code)

	w := s.post(t, "/state/delete", map[string]any{"tg_chat_id": userChat}, true)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := s.store.GetState(ctx, userChat)
	require.ErrorIs(t, err, domain.ErrStateNotFound)

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(2, 2, "/start"), true).Code)
	state, err := s.store.GetState(ctx, userChat)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeGeneral, state.Mode)
	assert.Equal(t, 1, state.MessageCount)
	assert.False(t, state.TransferredToManager)
}

func TestMalformedUpdateFails(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/update", `{"update_id":`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnsupportedUpdateClassIsAcknowledged(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/update", `{"update_id":5,"edited_message":{"message_id":1,"date":0,"chat":{"id":111,"type":"private"},"text":"x"}}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.tg.Sent())
}

func TestSetWebhookRegistersPublicURL(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/webhook/set", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SetWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://bot.example.com/bot/update", resp.URL)
	assert.Equal(t, "https://bot.example.com/bot/update", s.tg.Webhook.URL)
	assert.Equal(t, config.DefaultSecretToken, s.tg.Webhook.Secret)
}

func TestCreatePostShortLinkThenOpenIt(t *testing.T) {
	s := newStack(t, nil)

	w := s.post(t, "/post-short-link/create", map[string]any{
		"post_short_link_id": 42,
		"name":               "Лофт",
		"description":        "Лофт на Пресне",
		"image_name":         "loft.jpg",
		"image_fid":          "photo-42",
		"file_name":          "",
		"file_fid":           "",
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CreatePostShortLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://t.me/wewall_bot?start=post_short_link_id-42", resp.DeepLink)
	png, err := base64.StdEncoding.DecodeString(resp.QRPNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	require.Equal(t, http.StatusOK, s.post(t, "/update", textUpdate(1, 1, "/start post_short_link_id-42"), true).Code)

	user, err := s.store.GetUser(context.Background(), userChat)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePostLink, user.SourceType)

	sent := s.tg.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, telegramtest.KindPhoto, sent[0].Kind)
	assert.Equal(t, "Лофт на Пресне", sent[0].Text)
	require.Len(t, sent[0].Keyboard.Inline, 2)
	assert.Equal(t, "Связаться с менеджером", sent[0].Keyboard.Inline[0][0].Text)
	assert.Equal(t, "Функции бота", sent[0].Keyboard.Inline[1][0].Text)
}

func TestSchemaEndpoints(t *testing.T) {
	s := newStack(t, nil)

	require.Equal(t, http.StatusOK, s.post(t, "/table/create", nil, true).Code)
	require.Equal(t, http.StatusOK, s.post(t, "/table/drop", nil, true).Code)
	assert.Equal(t, 1, s.schema.up)
	assert.Equal(t, 1, s.schema.down)
}
