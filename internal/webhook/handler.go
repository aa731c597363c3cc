package webhook

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/postlink"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/httpkit"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"

	// updateTimeout bounds one update once the provider has handed it over.
	updateTimeout = 2 * time.Minute
	maxBodyBytes  = 1 << 20
)

// UpdateProcessor runs provider updates through the middleware pipeline.
type UpdateProcessor interface {
	Process(ctx context.Context, upd telegram.Update) error
}

// ChatExecutor serialises writers of one chat's state.
type ChatExecutor interface {
	Do(ctx context.Context, chatID int64, fn func(ctx context.Context) error) error
}

// ManagerDelivery relays CRM manager replies to users.
type ManagerDelivery interface {
	ResolveChat(ctx context.Context, crmChatID string) (int64, error)
	DeliverManagerMessage(ctx context.Context, chatID int64, crmMessageID, text string) error
}

// StateResetter drops a chat's state.
type StateResetter interface {
	DeleteState(ctx context.Context, chatID int64) error
}

// PostCreator registers promotional posts.
type PostCreator interface {
	Create(ctx context.Context, link domain.PostShortLink) (postlink.Created, error)
}

// WebhookRegistrar registers the webhook with the provider.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, url, secret string) error
}

// SchemaMigrator creates and drops the schema.
type SchemaMigrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// Config provides the public address the webhook is registered at.
type Config interface {
	GetWebhookDomain() string
	GetWebhookPrefix() string
	GetSecretToken() string
}

// Services are the collaborators behind the endpoints.
type Services struct {
	Updates  UpdateProcessor
	Executor ChatExecutor
	Manager  ManagerDelivery
	States   StateResetter
	Posts    PostCreator
	Provider WebhookRegistrar
	Schema   SchemaMigrator
}

// Handler handles webhook HTTP requests.
type Handler struct {
	svc Services
	cfg Config
	val *validator.Validator
	log *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(svc Services, cfg Config, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, cfg: cfg, val: val, log: log}
}

// HandleUpdate accepts a provider update.
// POST {prefix}/update
func (h *Handler) HandleUpdate(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInput, "read update", err))
		return
	}

	upd, ok, err := telegram.ParseUpdate(body)
	if httpkit.HandleError(c, err) {
		return
	}
	if !ok {
		h.log.WithContext(c.Request.Context()).Debug("update class ignored")
		httpkit.OK(c)
		return
	}

	// The update is processed to the end even if the provider gives up waiting.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), updateTimeout)
	defer cancel()
	if httpkit.HandleError(c, h.svc.Updates.Process(ctx, upd)) {
		return
	}
	httpkit.OK(c)
}

// HandleCreatePostShortLink registers a post and answers with its deep link.
// POST {prefix}/post-short-link/create
func (h *Handler) HandleCreatePostShortLink(c *gin.Context) {
	var req CreatePostShortLinkRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	created, err := h.svc.Posts.Create(c.Request.Context(), domain.PostShortLink{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		ImageName:   req.ImageName,
		ImageFileID: req.ImageFileID,
		FileName:    req.FileName,
		FileFileID:  req.FileFileID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusOK, CreatePostShortLinkResponse{
		Status:   httpkit.StatusOK,
		DeepLink: created.DeepLink,
		QRPNG:    base64.StdEncoding.EncodeToString(created.QRPNG),
	})
}

// HandleSendMessage delivers a manager reply from the CRM.
// POST {prefix}/message/send
func (h *Handler) HandleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	chatID := req.ChatID
	if chatID == 0 {
		resolved, err := h.svc.Manager.ResolveChat(ctx, req.CRMChatID)
		if httpkit.HandleError(c, err) {
			return
		}
		chatID = resolved
	}

	err := h.svc.Executor.Do(ctx, chatID, func(ctx context.Context) error {
		return h.svc.Manager.DeliverManagerMessage(ctx, chatID, req.CRMMessageID, req.Text)
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c)
}

// HandleDeleteState resets a chat: state, search session and history.
// POST {prefix}/state/delete
func (h *Handler) HandleDeleteState(c *gin.Context) {
	var req DeleteStateRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	err := h.svc.Executor.Do(c.Request.Context(), req.ChatID, func(ctx context.Context) error {
		return h.svc.States.DeleteState(ctx, req.ChatID)
	})
	if httpkit.HandleError(c, err) {
		return
	}
	h.log.WithContext(c.Request.Context()).Info("chat state deleted", "chat_id", req.ChatID)
	httpkit.OK(c)
}

// HandleSetWebhook registers {domain}{prefix}/update with the provider. Repeating it is harmless.
// POST {prefix}/webhook/set
func (h *Handler) HandleSetWebhook(c *gin.Context) {
	url := h.webhookURL()
	if httpkit.HandleError(c, h.svc.Provider.SetWebhook(c.Request.Context(), url, h.cfg.GetSecretToken())) {
		return
	}
	httpkit.JSON(c, http.StatusOK, SetWebhookResponse{Status: httpkit.StatusOK, URL: url})
}

// HandleCreateTables applies the schema migrations.
// POST {prefix}/table/create
func (h *Handler) HandleCreateTables(c *gin.Context) {
	if httpkit.HandleError(c, h.svc.Schema.Up(c.Request.Context())) {
		return
	}
	httpkit.OK(c)
}

// HandleDropTables rolls the schema back.
// POST {prefix}/table/drop
func (h *Handler) HandleDropTables(c *gin.Context) {
	if httpkit.HandleError(c, h.svc.Schema.Down(c.Request.Context())) {
		return
	}
	httpkit.OK(c)
}

func (h *Handler) webhookURL() string {
	domainName := strings.TrimSuffix(strings.TrimPrefix(h.cfg.GetWebhookDomain(), "https://"), "/")
	prefix := strings.TrimRight(h.cfg.GetWebhookPrefix(), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return "https://" + domainName + prefix + "/update"
}

// bindAndValidate answers 500 for a body that cannot be decoded, like any other
// handler failure, and 400 when a decoded field breaks a validation rule.
func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, errInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return false
	}
	return true
}
