package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository/repotest"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crmConfig struct {
	baseURL string
	enabled bool
}

func (c crmConfig) GetCRMBaseURL() string             { return c.baseURL }
func (c crmConfig) GetCRMToken() string               { return "crm-token" }
func (c crmConfig) GetCRMMainPipelineID() int64       { return 100 }
func (c crmConfig) GetCRMAppealPipelineID() int64     { return 200 }
func (c crmConfig) GetCRMUsernameFieldID() int64      { return 7 }
func (c crmConfig) GetCRMLeadSourceFieldID() int64    { return 8 }
func (c crmConfig) GetOutboundTimeout() time.Duration { return 5 * time.Second }
func (c crmConfig) IsCRMEnabled() bool                { return c.enabled }
func (c crmConfig) GetCRMStatusIDs() map[string]int64 {
	return map[string]int64{
		StatusChatWithBot:     1,
		StatusHighEngagement:  2,
		StatusActiveUser:      3,
		StatusChatWithManager: 4,
	}
}

type crmRequest struct {
	Method string
	Path   string
	Auth   string
	Body   json.RawMessage
}

type fakeCRM struct {
	mu       sync.Mutex
	requests []crmRequest
	fail     bool
	failOnce string
	server   *httptest.Server
}

func newFakeCRM(t *testing.T) *fakeCRM {
	t.Helper()
	f := &fakeCRM{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, crmRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		fail := f.fail || (f.failOnce != "" && f.failOnce == r.URL.Path)
		if f.failOnce == r.URL.Path {
			f.failOnce = ""
		}
		f.mu.Unlock()

		if fail {
			http.Error(w, "crm is down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/contacts":
			_, _ = io.WriteString(w, `{"_embedded":{"contacts":[{"id":501}]}}`)
		case "/api/v4/leads":
			_, _ = io.WriteString(w, `{"_embedded":{"leads":[{"id":601}]}}`)
		case "/api/v4/chats":
			_, _ = io.WriteString(w, `{"id":"crm-chat-1"}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCRM) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (f *fakeCRM) last() crmRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type sentText struct {
	ChatID int64
	Text   string
	KB     *telegram.Keyboard
}

type fakeSender struct {
	sent []sentText
}

func (s *fakeSender) SendText(_ context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error) {
	s.sent = append(s.sent, sentText{ChatID: chatID, Text: text, KB: kb})
	return len(s.sent), nil
}

type fixture struct {
	crm    *fakeCRM
	store  *repotest.Memory
	sender *fakeSender
	redis  *miniredis.Miniredis
	mirror *Mirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		crm:    newFakeCRM(t),
		store:  repotest.NewMemory(),
		sender: &fakeSender{},
		redis:  miniredis.RunT(t),
	}
	cfg := crmConfig{baseURL: f.crm.server.URL, enabled: true}
	rdb := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	f.mirror = NewMirror(cfg, NewClient(cfg), f.store, f.sender, rdb, logger.Nop())
	return f
}

func TestEnsureAssociationCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := telegram.Sender{ID: 111, Username: "ivan", FirstName: "Ivan"}

	a, err := f.mirror.EnsureAssociation(ctx, 111, from, domain.SourceDirectLink)
	require.NoError(t, err)
	assert.EqualValues(t, 501, a.ContactID)
	assert.EqualValues(t, 601, a.LeadID)
	assert.Equal(t, "crm-chat-1", a.CRMChatID)
	assert.Equal(t, StatusChatWithBot, a.Status)

	_, err = f.mirror.EnsureAssociation(ctx, 111, from, domain.SourceDirectLink)
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /api/v4/contacts", "POST /api/v4/leads", "POST /api/v4/chats"}, f.crm.paths())

	var leads []leadRequest
	f.crm.mu.Lock()
	require.NoError(t, json.Unmarshal(f.crm.requests[1].Body, &leads))
	auth := f.crm.requests[1].Auth
	f.crm.mu.Unlock()
	require.Len(t, leads, 1)
	assert.EqualValues(t, 100, leads[0].PipelineID)
	assert.EqualValues(t, 1, leads[0].StatusID)
	assert.Equal(t, "direct_link", leads[0].CustomFieldsValues[0].Values[0].Value)
	assert.Equal(t, "Bearer crm-token", auth)
}

func TestEnsureAssociationResumesAfterFailedStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := telegram.Sender{ID: 111, Username: "ivan"}
	f.crm.failOnce = "/api/v4/chats"

	_, err := f.mirror.EnsureAssociation(ctx, 111, from, domain.SourceDirectLink)
	require.Error(t, err)

	partial, err := f.store.GetAssociation(ctx, 111)
	require.NoError(t, err)
	assert.EqualValues(t, 501, partial.ContactID)
	assert.EqualValues(t, 601, partial.LeadID)
	assert.False(t, partial.Complete())

	require.NoError(t, f.mirror.MirrorInbound(ctx, 111, 1, "hi"))

	a, err := f.mirror.EnsureAssociation(ctx, 111, from, domain.SourceDirectLink)
	require.NoError(t, err)
	assert.True(t, a.Complete())
	assert.Equal(t, "crm-chat-1", a.CRMChatID)

	assert.Equal(t, []string{
		"POST /api/v4/contacts",
		"POST /api/v4/leads",
		"POST /api/v4/chats",
		"POST /api/v4/chats",
	}, f.crm.paths())
}

func TestMirrorRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mirror.EnsureAssociation(ctx, 111, telegram.Sender{Username: "ivan"}, domain.SourceDirectLink)
	require.NoError(t, err)

	require.NoError(t, f.mirror.MirrorInbound(ctx, 111, 7, "хочу квартиру"))
	in := f.crm.last()
	assert.Equal(t, "/api/v4/chats/crm-chat-1/messages", in.Path)
	assert.JSONEq(t, `{"msg_id":"tg-111-7","role":"user","text":"хочу квартиру"}`, string(in.Body))

	require.NoError(t, f.mirror.ImportOutbound(ctx, 111, "Подбираю варианты"))
	out := f.crm.last()
	assert.Equal(t, "/api/v4/chats/crm-chat-1/messages/import", out.Path)
	var msg messageRequest
	require.NoError(t, json.Unmarshal(out.Body, &msg))
	assert.Equal(t, RoleBot, msg.Role)
	assert.Equal(t, "Подбираю варианты", msg.Text)
}

func TestImportOutboundIDsFollowUpdate(t *testing.T) {
	f := newFixture(t)
	_, err := f.mirror.EnsureAssociation(context.Background(), 111, telegram.Sender{Username: "ivan"}, domain.SourceDirectLink)
	require.NoError(t, err)

	importIDs := func(updateID int) []string {
		ctx := WithOutboundSequence(context.Background(), updateID)
		var ids []string
		for _, text := range []string{"первый", "второй"} {
			require.NoError(t, f.mirror.ImportOutbound(ctx, 111, text))
			var msg messageRequest
			require.NoError(t, json.Unmarshal(f.crm.last().Body, &msg))
			ids = append(ids, msg.MessageID)
		}
		return ids
	}

	first := importIDs(42)
	assert.Equal(t, []string{"bot-111-42-1", "bot-111-42-2"}, first)
	assert.Equal(t, first, importIDs(42))
	assert.Equal(t, []string{"bot-111-43-1", "bot-111-43-2"}, importIDs(43))
}

func TestMirrorWithoutAssociationIsSkipped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mirror.MirrorInbound(context.Background(), 999, 1, "hi"))
	assert.Empty(t, f.crm.paths())
}

func TestHandOffMovesLeadToAppealPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mirror.EnsureAssociation(ctx, 111, telegram.Sender{}, domain.SourceDirectLink)
	require.NoError(t, err)

	require.NoError(t, f.mirror.HandOff(ctx, 111, "Клиент ищет двушку"))

	paths := f.crm.paths()
	assert.Equal(t, "PATCH /api/v4/leads/601", paths[3])
	assert.Equal(t, "POST /api/v4/chats/crm-chat-1/messages/import", paths[4])

	f.crm.mu.Lock()
	var edit leadRequest
	require.NoError(t, json.Unmarshal(f.crm.requests[3].Body, &edit))
	f.crm.mu.Unlock()
	assert.EqualValues(t, 200, edit.PipelineID)
	assert.EqualValues(t, 4, edit.StatusID)

	a, err := f.store.GetAssociation(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, StatusChatWithManager, a.Status)

	// same status twice does not call the CRM again
	require.NoError(t, f.mirror.MoveLead(ctx, 111, StatusChatWithManager))
	assert.Len(t, f.crm.paths(), 5)
}

func TestCRMFailureIsExternal(t *testing.T) {
	f := newFixture(t)
	f.crm.fail = true

	_, err := f.mirror.EnsureAssociation(context.Background(), 111, telegram.Sender{}, domain.SourceDirectLink)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))
}

func TestDeliverManagerMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mirror.DeliverManagerMessage(ctx, 111, "crm-msg-1", "Hello"))
	require.NoError(t, f.mirror.DeliverManagerMessage(ctx, 111, "crm-msg-1", "Hello"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Hello", f.sender.sent[0].Text)
	require.NotNil(t, f.sender.sent[0].KB)
	assert.Equal(t, [][]string{{domain.CloseManagerChat}}, f.sender.sent[0].KB.Reply)

	state, err := f.store.GetState(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeManager, state.Mode)
	assert.True(t, state.TransferredToManager)
}

func TestResolveChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mirror.EnsureAssociation(ctx, 111, telegram.Sender{}, domain.SourceDirectLink)
	require.NoError(t, err)

	chatID, err := f.mirror.ResolveChat(ctx, "crm-chat-1")
	require.NoError(t, err)
	assert.EqualValues(t, 111, chatID)

	_, err = f.mirror.ResolveChat(ctx, "unknown")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDisabledMirrorIsNoop(t *testing.T) {
	store := repotest.NewMemory()
	cfg := crmConfig{}
	m := NewMirror(cfg, NewClient(cfg), store, &fakeSender{}, nil, logger.Nop())
	ctx := context.Background()

	_, err := m.EnsureAssociation(ctx, 1, telegram.Sender{}, domain.SourceDirectLink)
	require.NoError(t, err)
	require.NoError(t, m.MirrorInbound(ctx, 1, 1, "x"))
	require.NoError(t, m.MoveLead(ctx, 1, StatusActiveUser))
	_, err = store.GetAssociation(ctx, 1)
	assert.Error(t, err)
}
