// Package pipeline runs every incoming update through the ordered middleware chain
// (tracing, metrics, logging, subscription gate, state hydration, message counter,
// contact mirror) before handing it to the expert router. Updates of one chat are
// processed one at a time.
package pipeline

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotSubscribed short-circuits updates of users outside the announcement channel.
var ErrNotSubscribed = apperr.Policy("user is not subscribed to the channel")

// Handler processes one update.
type Handler func(ctx context.Context, req *router.Request) error

// Middleware wraps a handler.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Router handles hydrated updates.
type Router interface {
	Handle(ctx context.Context, req *router.Request) error
}

// Mirror is the part of the CRM mirror the pipeline drives.
type Mirror interface {
	EnsureAssociation(ctx context.Context, chatID int64, from telegram.Sender, source domain.SourceType) (repository.Association, error)
	MirrorInbound(ctx context.Context, chatID int64, messageID int, text string) error
	MoveLead(ctx context.Context, chatID int64, status string) error
}

// Membership checks the announcement channel subscription.
type Membership interface {
	Channel() string
	IsMember(ctx context.Context, userID int64, fresh bool) (bool, error)
}

// Catalogue provides canned texts and button labels.
type Catalogue interface {
	Text(key string, args ...string) string
	Button(key string) string
}

// Store is the persistence the pipeline needs.
type Store interface {
	GetState(ctx context.Context, chatID int64) (domain.ChatState, error)
	CreateState(ctx context.Context, chatID int64) (domain.ChatState, error)
	IncrementMessageCount(ctx context.Context, chatID int64) (domain.ChatState, error)
	GetUser(ctx context.Context, chatID int64) (domain.User, error)
	CreateUser(ctx context.Context, chatID int64, source domain.SourceType) (domain.User, error)
	SetBotBlocked(ctx context.Context, chatID int64, blocked bool) error
}

// Deps are the collaborators of the pipeline.
type Deps struct {
	Store      Store
	Router     Router
	Mirror     Mirror
	Membership Membership
	Provider   telegram.Provider
	Catalogue  Catalogue
	Engagement config.EngagementConfig
	Tracer     trace.Tracer
	Meter      metric.Meter
	Bus        events.Bus
	Log        *logger.Logger
}

// Pipeline is the middleware chain in front of the router.
type Pipeline struct {
	deps     Deps
	executor *Executor
	handler  Handler
}

// New builds the pipeline.
func New(deps Deps, executor *Executor) (*Pipeline, error) {
	if executor == nil {
		executor = NewExecutor()
	}
	p := &Pipeline{deps: deps, executor: executor}

	metrics, err := newUpdateMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	p.handler = Chain(deps.Router.Handle,
		p.tracing,
		metrics.middleware,
		p.logging,
		p.subscriptionGate,
		p.hydrate,
		p.countMessages,
		p.mirrorContact,
	)
	return p, nil
}

// Process runs one update through the chain while holding the chat's lock.
// Updates refused by a policy gate count as handled.
func (p *Pipeline) Process(ctx context.Context, upd telegram.Update) error {
	err := p.executor.Do(ctx, upd.ChatID, func(ctx context.Context) error {
		return p.handler(ctx, &router.Request{Update: upd})
	})
	if apperr.Is(err, apperr.KindPolicy) {
		return nil
	}
	return err
}

// Executor returns the per-chat executor shared with other writers of chat state.
func (p *Pipeline) Executor() *Executor {
	return p.executor
}

// isQuiet reports errors that end an update normally: the user was answered or refused.
func isQuiet(err error) bool {
	if err == nil {
		return true
	}
	if _, ok := apperr.UserFacing(err); ok {
		return true
	}
	return apperr.Is(err, apperr.KindPolicy)
}
