// Package webhook is the intake of the bot: provider updates, manager replies from
// the CRM and the admin bot's calls, all behind the shared secret token.
package webhook

import (
	apphttp "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/validator"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module.
func NewModule(svc Services, cfg Config, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(svc, cfg, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Secured
	g.POST("/update", m.handler.HandleUpdate)
	g.POST("/post-short-link/create", m.handler.HandleCreatePostShortLink)
	g.POST("/message/send", m.handler.HandleSendMessage)
	g.POST("/state/delete", m.handler.HandleDeleteState)
	g.POST("/webhook/set", m.handler.HandleSetWebhook)

	if m.handler.svc.Schema != nil {
		g.POST("/table/create", m.handler.HandleCreateTables)
		g.POST("/table/drop", m.handler.HandleDropTables)
	}
}

var _ apphttp.Module = (*Module)(nil)
