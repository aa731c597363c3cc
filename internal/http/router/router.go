// Package router builds the gin engine from the application's modules.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	apphttp "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/httpkit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	healthTimeout = 2 * time.Second
	// Requests per second per IP on secured routes. Telegram delivers in bursts.
	ipRate  = 50
	ipBurst = 100
)

// New creates the engine: recovery, request id and request logging for every route,
// /health at the root, and each module under the webhook prefix.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))

	engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if app.Health != nil {
			if err := app.Health.Ping(ctx); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "database unavailable", nil)
				return
			}
		}
		httpkit.OK(c)
	})

	limiter := httpkit.NewIPRateLimiter(rate.Limit(ipRate), ipBurst, app.Logger)
	root := engine.Group(normalizePrefix(app.Config.GetWebhookPrefix()))
	// The secret goes first: a wrong token always gets the 200 refusal body, even past the limit.
	secured := root.Group("", httpkit.SecretToken(app.Config.GetSecretToken()), limiter.RateLimit())

	rc := &apphttp.RouterContext{
		Engine:      engine,
		Root:        root,
		Secured:     secured,
		RateLimiter: limiter,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Info("module registered", "module", m.Name())
	}
	return engine
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
