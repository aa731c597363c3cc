// Package http assembles the webhook server from modules.
package http

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/httpkit"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig is what the engine needs from configuration.
type RouterConfig interface {
	config.HTTPConfig
	GetWebhookPrefix() string
}

// HealthChecker answers GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is everything router.New mounts. Health may be nil.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}

// Module mounts a group of endpoints.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to every module.
type RouterContext struct {
	Engine *gin.Engine
	// Root is the group under the webhook prefix.
	Root *gin.RouterGroup
	// Secured is Root behind the rate limiter and the shared secret.
	Secured     *gin.RouterGroup
	RateLimiter *httpkit.IPRateLimiter
}
