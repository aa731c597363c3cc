package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const spanName = "telegram.update"

// tracing opens the update span and carries the trace id in the context for logs and alerts.
func (p *Pipeline) tracing(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		upd := req.Update
		ctx, span := p.deps.Tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.Int64("tg.chat_id", upd.ChatID),
				attribute.String("tg.update_type", string(upd.Type)),
				attribute.Int("tg.update_id", upd.ID),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		ctx = logger.ContextWithTraceID(ctx, traceID)
		ctx = logger.ContextWithChatID(ctx, upd.ChatID)

		err := next(ctx, req)
		span.SetAttributes(attribute.String("tg.mode", string(req.State.Mode)))
		if isQuiet(err) {
			if err != nil {
				span.AddEvent("update answered", trace.WithAttributes(attribute.String("reason", err.Error())))
			}
			span.SetStatus(codes.Ok, "")
			return err
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if apperr.IsInternal(err) {
			p.deps.Bus.Publish(ctx, events.InternalErrorRaised{
				BaseEvent:  events.NewBaseEvent(),
				TraceID:    traceID,
				ChatID:     upd.ChatID,
				UpdateType: string(upd.Type),
				Error:      err.Error(),
			})
		}
		return err
	}
}

type updateMetrics struct {
	updates  metric.Int64Counter
	duration metric.Float64Histogram
}

func newUpdateMetrics(meter metric.Meter) (*updateMetrics, error) {
	updates, err := meter.Int64Counter("bot.updates",
		metric.WithDescription("Updates processed by the pipeline"))
	if err != nil {
		return nil, fmt.Errorf("updates counter: %w", err)
	}
	duration, err := meter.Float64Histogram("bot.update.duration",
		metric.WithDescription("Update processing time"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return &updateMetrics{updates: updates, duration: duration}, nil
}

func (m *updateMetrics) middleware(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		start := time.Now()
		err := next(ctx, req)

		outcome := "ok"
		switch {
		case apperr.Is(err, apperr.KindPolicy):
			outcome = "refused"
		case !isQuiet(err):
			outcome = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("update_type", string(req.Update.Type)),
			attribute.String("outcome", outcome),
		)
		m.updates.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		return err
	}
}

func (p *Pipeline) logging(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		start := time.Now()
		err := next(ctx, req)

		upd := req.Update
		fields := logger.UpdateFields{
			ChatID:       upd.ChatID,
			Username:     upd.From.Username,
			UpdateType:   string(upd.Type),
			MessageID:    upd.MessageID,
			CallbackData: upd.CallbackData,
		}
		log := p.deps.Log.WithContext(ctx)
		if isQuiet(err) {
			if err != nil {
				log.Info("update refused", slog.String("reason", err.Error()))
			}
			log.UpdateHandled(fields, time.Since(start), nil)
		} else {
			log.UpdateHandled(fields, time.Since(start), err)
		}
		return err
	}
}

// subscriptionGate requires membership in the announcement channel. Chats owned by a
// manager are exempt. The verify button re-checks without the cache.
func (p *Pipeline) subscriptionGate(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		m := p.deps.Membership
		if m == nil || m.Channel() == "" {
			return next(ctx, req)
		}

		state, err := p.deps.Store.GetState(ctx, req.Update.ChatID)
		switch {
		case err == nil && state.InManagerChat():
			return next(ctx, req)
		case err != nil && !errors.Is(err, domain.ErrStateNotFound):
			return fmt.Errorf("load state: %w", err)
		}

		verify := req.Update.IsCallback() && req.Update.CallbackData == router.CheckSubscriptionData
		member, err := m.IsMember(ctx, req.Update.From.ID, verify)
		if err != nil {
			return err
		}
		if member {
			return next(ctx, req)
		}

		if verify {
			if err := p.deps.Provider.AnswerCallback(ctx, req.Update.CallbackID, p.deps.Catalogue.Text("subscribe_missing")); err != nil {
				return err
			}
			return ErrNotSubscribed
		}
		if req.Update.IsCallback() {
			if err := p.deps.Provider.AnswerCallback(ctx, req.Update.CallbackID, ""); err != nil {
				return err
			}
		}

		channel := m.Channel()
		kb := router.SubscribeKeyboard(channelURL(channel), p.deps.Catalogue.Button("subscribe"), p.deps.Catalogue.Button("check_subscription"))
		if _, err := p.deps.Provider.SendText(ctx, req.Update.ChatID, p.deps.Catalogue.Text("subscribe", "channel", channel), kb); err != nil {
			return err
		}
		return ErrNotSubscribed
	}
}

func channelURL(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}

// hydrate loads or creates the chat state and user record and makes sure the chat
// is known to the CRM.
func (p *Pipeline) hydrate(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		upd := req.Update
		store := p.deps.Store

		state, err := store.GetState(ctx, upd.ChatID)
		if errors.Is(err, domain.ErrStateNotFound) {
			state, err = store.CreateState(ctx, upd.ChatID)
		}
		if err != nil {
			return fmt.Errorf("hydrate state: %w", err)
		}

		user, err := store.GetUser(ctx, upd.ChatID)
		if errors.Is(err, domain.ErrUserNotFound) {
			user, err = store.CreateUser(ctx, upd.ChatID, sourceOf(req))
		}
		if err != nil {
			return fmt.Errorf("hydrate user: %w", err)
		}
		if user.IsBotBlocked {
			if err := store.SetBotBlocked(ctx, upd.ChatID, false); err != nil {
				return fmt.Errorf("unblock user: %w", err)
			}
			user.IsBotBlocked = false
		}

		if _, err := p.deps.Mirror.EnsureAssociation(ctx, upd.ChatID, upd.From, user.SourceType); err != nil {
			return err
		}

		req.State = state
		req.User = user
		return next(ctx, req)
	}
}

func sourceOf(req *router.Request) domain.SourceType {
	if name, args, ok := req.Update.Command(); ok && name == router.CommandStart {
		return domain.SourceFromStartPayload(args)
	}
	return domain.SourceDirectLink
}

// countMessages increments the message counter of text updates and moves the lead
// when a threshold is reached. The move is posted before the text is mirrored.
func (p *Pipeline) countMessages(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		if req.Update.IsCallback() {
			return next(ctx, req)
		}

		state, err := p.deps.Store.IncrementMessageCount(ctx, req.Update.ChatID)
		if err != nil {
			return fmt.Errorf("increment message count: %w", err)
		}
		req.State = state

		if status := p.thresholdStatus(state); status != "" {
			if err := p.deps.Mirror.MoveLead(ctx, req.Update.ChatID, status); err != nil {
				return err
			}
		}
		return next(ctx, req)
	}
}

// thresholdStatus is the lead status reached by the current message count, if any.
// A chat owned by a manager keeps its hand-off status.
func (p *Pipeline) thresholdStatus(state domain.ChatState) string {
	if state.InManagerChat() {
		return ""
	}
	cfg := p.deps.Engagement
	switch state.MessageCount {
	case cfg.GetThresholdActive():
		return crm.StatusActiveUser
	case cfg.GetThresholdHigh():
		return crm.StatusHighEngagement
	default:
		return ""
	}
}

// mirrorContact forwards the user's text to the CRM once the handler has run.
func (p *Pipeline) mirrorContact(next Handler) Handler {
	return func(ctx context.Context, req *router.Request) error {
		err := next(ctx, req)

		upd := req.Update
		if upd.IsCallback() || upd.Text == "" {
			return err
		}
		if mirrorErr := p.deps.Mirror.MirrorInbound(ctx, upd.ChatID, upd.MessageID, upd.Text); mirrorErr != nil {
			return errors.Join(err, mirrorErr)
		}
		return err
	}
}
