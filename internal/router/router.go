// Package router is the expert router: for every hydrated update it picks the
// handler of the chat's current mode, or the command and callback handlers, and
// performs the mode transitions between the advisors and the manager.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/estate"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/ai/yandexgpt"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
)

// Request is one update after state hydration.
type Request struct {
	Update telegram.Update
	State  domain.ChatState
	User   domain.User
}

// ChatID is the chat the request belongs to.
func (r *Request) ChatID() int64 {
	return r.Update.ChatID
}

// ModeHandler serves plain messages of one mode.
type ModeHandler interface {
	Handle(ctx context.Context, req *Request) error
}

// ModeHandlerFunc adapts a function to ModeHandler.
type ModeHandlerFunc func(ctx context.Context, req *Request) error

// Handle calls f.
func (f ModeHandlerFunc) Handle(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// Mirror is the part of the CRM mirror the router drives.
type Mirror interface {
	ImportOutbound(ctx context.Context, chatID int64, text string) error
	HandOff(ctx context.Context, chatID int64, summary string) error
	MoveLead(ctx context.Context, chatID int64, status string) error
	UpdateContact(ctx context.Context, chatID int64, details crm.ContactDetails) error
}

// PostLinks resolves post short links of /start deep links.
type PostLinks interface {
	Get(ctx context.Context, id int64) (domain.PostShortLink, error)
}

// Catalogue provides prompts, canned texts and button labels.
type Catalogue interface {
	Prompt(key string) string
	Text(key string, args ...string) string
	Button(key string) string
}

// Deps are the collaborators of the router.
type Deps struct {
	Store      repository.Store
	Provider   telegram.Provider
	Mirror     Mirror
	LLM        yandexgpt.Completer
	Searcher   estate.Searcher
	Calculator estate.Calculator
	News       estate.NewsSource
	PostLinks  PostLinks
	Catalogue  Catalogue
	Engagement config.EngagementConfig
	Log        *logger.Logger
}

// Router dispatches hydrated updates.
type Router struct {
	Deps
	respond *Responder
	modes   map[domain.Mode]ModeHandler
}

// New wires the mode handlers.
func New(deps Deps) *Router {
	r := &Router{
		Deps:    deps,
		respond: NewResponder(deps.Provider, deps.Mirror, deps.Log),
	}
	r.modes = map[domain.Mode]ModeHandler{
		domain.ModeGeneral:          ModeHandlerFunc(r.handleGeneral),
		domain.ModeSearch:           ModeHandlerFunc(r.handleSearch),
		domain.ModeFinance:          ModeHandlerFunc(r.handleFinance),
		domain.ModeEstateNews:       ModeHandlerFunc(r.handleNews),
		domain.ModeContactCollector: ModeHandlerFunc(r.handleContact),
		domain.ModeManager:          ModeHandlerFunc(r.handleManager),
	}
	return r
}

// Handle routes one update. Domain errors meant for the user are answered as plain
// text and do not fail the update.
func (r *Router) Handle(ctx context.Context, req *Request) error {
	ctx = crm.WithOutboundSequence(ctx, req.Update.ID)
	var err error
	if req.Update.IsCallback() {
		err = r.handleCallback(ctx, req)
	} else {
		err = r.handleMessage(ctx, req)
	}
	if err == nil {
		return nil
	}

	if msg, ok := apperr.UserFacing(err); ok {
		r.Log.WithContext(ctx).Info("domain error answered to user", slog.String("error", err.Error()))
		return r.respond.Text(ctx, req.ChatID(), msg, nil)
	}
	return err
}

func (r *Router) handleMessage(ctx context.Context, req *Request) error {
	if req.State.InManagerChat() {
		if req.Update.Text == domain.CloseManagerChat {
			return r.closeManagerChat(ctx, req)
		}
		return r.modes[domain.ModeManager].Handle(ctx, req)
	}

	if name, args, ok := req.Update.Command(); ok {
		if handled, err := r.handleCommand(ctx, req, name, args); handled {
			return err
		}
	}

	if req.Update.Text == "" {
		return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("unknown"), r.modeKeyboard(req.State.Mode))
	}

	h, ok := r.modes[req.State.Mode]
	if !ok {
		return apperr.Internal(fmt.Sprintf("no handler for mode %q", req.State.Mode))
	}
	return h.Handle(ctx, req)
}

// switchMode moves the chat to mode, dropping the history of the previous mode
// and any search session.
func (r *Router) switchMode(ctx context.Context, req *Request, mode domain.Mode) error {
	if mode != domain.ModeSearch {
		if err := r.Store.DeleteSearchSession(ctx, req.State.ID); err != nil {
			return fmt.Errorf("delete search session: %w", err)
		}
	}
	if err := r.Store.ClearMessages(ctx, req.State.ID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	state, err := r.Store.SetMode(ctx, req.ChatID(), mode)
	if err != nil {
		return fmt.Errorf("set mode %s: %w", mode, err)
	}
	req.State = state
	return nil
}

// handOff transfers the chat to a human manager with an LLM summary of the conversation.
func (r *Router) handOff(ctx context.Context, req *Request, summary string) error {
	if summary == "" {
		summary = r.summarize(ctx, req)
	}
	if err := r.Mirror.HandOff(ctx, req.ChatID(), summary); err != nil {
		return err
	}
	state, err := r.Store.SetTransferredToManager(ctx, req.ChatID(), true, domain.ModeManager)
	if err != nil {
		return fmt.Errorf("transfer to manager: %w", err)
	}
	req.State = state
	return nil
}

func (r *Router) summarize(ctx context.Context, req *Request) string {
	history, err := r.Store.ListMessages(ctx, req.State.ID, req.State.Mode, historyLimit)
	if err != nil || len(history) == 0 {
		return ""
	}
	summary, err := r.LLM.Complete(ctx, r.Catalogue.Prompt(promptManagerSummary), toLLMHistory(history))
	if err != nil {
		r.Log.WithContext(ctx).Warn("manager summary failed", slog.String("error", err.Error()))
		return ""
	}
	return summary
}

func (r *Router) closeManagerChat(ctx context.Context, req *Request) error {
	state, err := r.Store.SetTransferredToManager(ctx, req.ChatID(), false, domain.ModeGeneral)
	if err != nil {
		return fmt.Errorf("close manager chat: %w", err)
	}
	req.State = state
	if err := r.Store.ClearMessages(ctx, state.ID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := r.Mirror.MoveLead(ctx, req.ChatID(), crm.StatusChatWithBot); err != nil {
		return err
	}
	if err := r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("manager_closed"), telegram.RemoveKeyboard()); err != nil {
		return err
	}
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("general_started"), r.generalKeyboard())
}

// maybeCollectContact enters the contact collector once enough searches and finance
// models were completed by a user without known contact details.
func (r *Router) maybeCollectContact(ctx context.Context, req *Request) error {
	threshold := r.Engagement.GetThresholdContact()
	if req.User.HasContact || threshold <= 0 || req.State.EngagementCount() != threshold {
		return nil
	}
	// The search session survives so the offer buttons above keep working.
	if err := r.Store.ClearMessages(ctx, req.State.ID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	state, err := r.Store.SetMode(ctx, req.ChatID(), domain.ModeContactCollector)
	if err != nil {
		return fmt.Errorf("set mode %s: %w", domain.ModeContactCollector, err)
	}
	req.State = state
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("contact_started"), r.modeKeyboard(domain.ModeContactCollector))
}
