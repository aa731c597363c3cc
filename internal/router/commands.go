package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// Bot commands.
const (
	CommandStart        = "start"
	CommandRestart      = "restart"
	CommandEstateSearch = "estate_search"
	CommandFinanceModel = "finance_model"
	CommandNews         = "news"
)

// maxCaptionLength is the Bot API limit for media captions.
const maxCaptionLength = 1024

var startedTexts = map[domain.Mode]string{
	domain.ModeGeneral:    "general_started",
	domain.ModeSearch:     "search_started",
	domain.ModeFinance:    "finance_started",
	domain.ModeEstateNews: "news_started",
}

// handleCommand runs a bot command. handled is false for unknown commands, which are
// then treated as plain text of the current mode.
func (r *Router) handleCommand(ctx context.Context, req *Request, name, args string) (bool, error) {
	switch name {
	case CommandStart:
		return true, r.start(ctx, req, args)
	case CommandRestart:
		return true, r.restart(ctx, req)
	case CommandEstateSearch:
		return true, r.enterMode(ctx, req, domain.ModeSearch)
	case CommandFinanceModel:
		return true, r.enterMode(ctx, req, domain.ModeFinance)
	case CommandNews:
		return true, r.enterMode(ctx, req, domain.ModeEstateNews)
	default:
		return false, nil
	}
}

func (r *Router) start(ctx context.Context, req *Request, payload string) error {
	if req.State.Mode != domain.ModeGeneral {
		if err := r.switchMode(ctx, req, domain.ModeGeneral); err != nil {
			return err
		}
	}

	if postID, ok := domain.ParseStartPayload(payload); ok {
		return r.renderPost(ctx, req, postID)
	}
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("greeting"), r.generalKeyboard())
}

func (r *Router) renderPost(ctx context.Context, req *Request, postID int64) error {
	post, err := r.PostLinks.Get(ctx, postID)
	if errors.Is(err, domain.ErrPostShortLinkNotFound) {
		r.Log.WithContext(ctx).Info("post short link not found", slog.Int64("post_id", postID))
		return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("post_not_found"), r.generalKeyboard())
	}
	if err != nil {
		return fmt.Errorf("load post %d: %w", postID, err)
	}

	chatID := req.ChatID()
	text := post.Description
	if text == "" {
		text = post.Name
	}
	switch {
	case post.HasImage() && utf8.RuneCountInString(text) <= maxCaptionLength:
		err = r.respond.Photo(ctx, chatID, post.ImageFileID, text, r.postKeyboard())
	case post.HasImage():
		if err = r.respond.Photo(ctx, chatID, post.ImageFileID, "", nil); err == nil {
			err = r.respond.Text(ctx, chatID, text, r.postKeyboard())
		}
	default:
		err = r.respond.Text(ctx, chatID, text, r.postKeyboard())
	}
	if err != nil {
		return err
	}

	if post.HasFile() {
		return r.respond.Document(ctx, chatID, post.FileFileID, post.FileName)
	}
	return nil
}

// restart drops everything the bot remembers about the chat and starts over.
func (r *Router) restart(ctx context.Context, req *Request) error {
	if err := r.Store.DeleteState(ctx, req.ChatID()); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	state, err := r.Store.CreateState(ctx, req.ChatID())
	if err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	req.State = state
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("greeting"), r.generalKeyboard())
}

func (r *Router) enterMode(ctx context.Context, req *Request, mode domain.Mode) error {
	if err := r.switchMode(ctx, req, mode); err != nil {
		return err
	}
	return r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text(startedTexts[mode]), r.modeKeyboard(mode))
}
