package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
)

// handleCallback runs an inline button press. Every callback query is answered,
// with a short notice when the press could not be served.
func (r *Router) handleCallback(ctx context.Context, req *Request) error {
	notice, err := r.dispatchCallback(ctx, req)
	if err != nil {
		_ = r.respond.Callback(ctx, req.Update.CallbackID, "")
		return err
	}
	return r.respond.Callback(ctx, req.Update.CallbackID, notice)
}

func (r *Router) dispatchCallback(ctx context.Context, req *Request) (string, error) {
	data, ok := ParseCallbackData(req.Update.CallbackData)
	if !ok {
		r.Log.WithContext(ctx).Warn("malformed callback data", slog.String("data", req.Update.CallbackData))
		return r.Catalogue.Text("unknown"), nil
	}

	if req.State.InManagerChat() {
		return r.Catalogue.Text("manager_wait"), nil
	}

	switch data.Prefix {
	case PrefixExpert:
		return r.expertCallback(ctx, req, data.Action)
	case PrefixSearch:
		return r.searchCallback(ctx, req, data)
	default:
		r.Log.WithContext(ctx).Warn("unknown callback prefix", slog.String("data", req.Update.CallbackData))
		return r.Catalogue.Text("unknown"), nil
	}
}

func (r *Router) expertCallback(ctx context.Context, req *Request, action string) (string, error) {
	switch action {
	case ActionToGeneral:
		return "", r.enterMode(ctx, req, domain.ModeGeneral)
	case ActionToSearch:
		return "", r.enterMode(ctx, req, domain.ModeSearch)
	case ActionToFinance:
		return "", r.enterMode(ctx, req, domain.ModeFinance)
	case ActionToNews:
		return "", r.enterMode(ctx, req, domain.ModeEstateNews)
	case ActionToManager:
		if err := r.handOff(ctx, req, ""); err != nil {
			return "", err
		}
		return "", r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("manager_connecting"), closeChatKeyboard())
	case ActionBotFunctions:
		return "", r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("bot_functions"), r.generalKeyboard())
	case ActionCheckSubscription:
		// Unsubscribed users never get here: the gate checked the channel without cache.
		return "", r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("subscribe_ok"), r.modeKeyboard(req.State.Mode))
	default:
		r.Log.WithContext(ctx).Warn("unknown expert action", slog.String("action", action))
		return r.Catalogue.Text("unknown"), nil
	}
}

func (r *Router) searchCallback(ctx context.Context, req *Request, data CallbackData) (string, error) {
	session, err := r.Store.GetSearchSession(ctx, req.State.ID)
	if errors.Is(err, domain.ErrSearchSessionNotFound) {
		return r.Catalogue.Text("stale_offer"), nil
	}
	if err != nil {
		return "", fmt.Errorf("load search session: %w", err)
	}
	if !session.IsCurrent(data.Arg) {
		return r.Catalogue.Text("stale_offer"), nil
	}

	switch data.Action {
	case ActionNextOffer:
		if _, err := session.NextOffer(); errors.Is(err, domain.ErrNoMoreOffers) {
			return r.exhausted(ctx, req, session, "no_more_offers")
		}
	case ActionNextEstate:
		if _, err := session.NextEstate(); errors.Is(err, domain.ErrNoMoreEstates) {
			return r.exhausted(ctx, req, session, "no_more_estates")
		}
	case ActionLikeOffer:
		return "", r.bookOffer(ctx, req, session)
	default:
		r.Log.WithContext(ctx).Warn("unknown search action", slog.String("action", data.Action))
		return r.Catalogue.Text("unknown"), nil
	}

	if err := r.Store.UpdateSearchCursor(ctx, session); err != nil {
		return "", fmt.Errorf("update search cursor: %w", err)
	}
	return "", r.renderOffer(ctx, req, session)
}

// exhausted answers a press past the end of the results. The session is dropped once
// the cursor stands on the last offer; before that the next offer button still works.
func (r *Router) exhausted(ctx context.Context, req *Request, session domain.SearchSession, notice string) (string, error) {
	if session.CurrentOfferIndex >= len(session.Offers)-1 {
		if err := r.Store.DeleteSearchSession(ctx, req.State.ID); err != nil {
			return "", fmt.Errorf("delete search session: %w", err)
		}
	}
	return r.Catalogue.Text(notice), nil
}

// bookOffer hands the chat to a manager with the liked offer as the summary.
func (r *Router) bookOffer(ctx context.Context, req *Request, session domain.SearchSession) error {
	summary := "Клиент выбрал предложение:\n" + offerText(session.Current())
	if err := r.handOff(ctx, req, summary); err != nil {
		return err
	}
	if err := r.Store.DeleteSearchSession(ctx, req.State.ID); err != nil {
		return fmt.Errorf("delete search session: %w", err)
	}
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("offer_booked"), closeChatKeyboard())
}

func closeChatKeyboard() *telegram.Keyboard {
	return telegram.ReplyButtons(domain.CloseManagerChat)
}
