package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/estate"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/ai/yandexgpt"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/phone"
)

func (r *Router) handleGeneral(ctx context.Context, req *Request) error {
	answer, err := r.converse(ctx, req, r.Catalogue.Prompt(string(domain.ModeGeneral)))
	if err != nil {
		return err
	}
	return r.respond.Text(ctx, req.ChatID(), r.orText(answer, "empty_answer"), r.generalKeyboard())
}

func (r *Router) handleSearch(ctx context.Context, req *Request) error {
	answer, err := r.converse(ctx, req, r.Catalogue.Prompt(string(domain.ModeSearch)))
	if err != nil {
		return err
	}

	var params map[string]any
	visible, found := r.completion(ctx, answer, "params", &params)
	if visible != "" {
		kb := r.advisorKeyboard()
		if found {
			kb = nil
		}
		if err := r.respond.Text(ctx, req.ChatID(), visible, kb); err != nil {
			return err
		}
	}
	if !found {
		return nil
	}
	return r.runSearch(ctx, req, params)
}

func (r *Router) runSearch(ctx context.Context, req *Request, params map[string]any) error {
	state, err := r.Store.IncrementSearchCount(ctx, req.ChatID())
	if err != nil {
		return fmt.Errorf("increment search count: %w", err)
	}
	req.State = state

	offers, err := r.Searcher.Search(ctx, params)
	if err != nil {
		return err
	}

	if len(offers) == 0 {
		if err := r.respond.Text(ctx, req.ChatID(), r.Catalogue.Text("no_matches"), nil); err != nil {
			return err
		}
		if err := r.suggestRelaxedSearch(ctx, req, params); err != nil {
			return err
		}
		return r.maybeCollectContact(ctx, req)
	}

	session, err := domain.NewSearchSession(req.State.ID, offers, params)
	if err != nil {
		return err
	}
	if session, err = r.Store.SaveSearchSession(ctx, session); err != nil {
		return fmt.Errorf("save search session: %w", err)
	}
	if err := r.renderOffer(ctx, req, session); err != nil {
		return err
	}
	return r.maybeCollectContact(ctx, req)
}

// suggestRelaxedSearch asks the model which parameters to loosen after an empty result.
func (r *Router) suggestRelaxedSearch(ctx context.Context, req *Request, params map[string]any) error {
	history, err := r.Store.ListMessages(ctx, req.State.ID, domain.ModeSearch, historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	turn := toLLMHistory(history)
	turn = append(turn, yandexgpt.Message{Role: yandexgpt.RoleUser, Text: fmt.Sprintf(
		"По параметрам %s ничего не найдено. Предложи, какие параметры можно ослабить.", formatParams(params))})

	answer, err := r.LLM.Complete(ctx, r.Catalogue.Prompt(string(domain.ModeSearch)), turn)
	if err != nil {
		return err
	}
	visible, _ := r.completion(ctx, answer, "params", &map[string]any{})
	if err := r.Store.AppendMessage(ctx, req.State.ID, domain.ModeSearch, domain.RoleAssistant, visible); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}
	return r.respond.Text(ctx, req.ChatID(), r.orText(visible, "empty_answer"), r.advisorKeyboard())
}

func (r *Router) handleFinance(ctx context.Context, req *Request) error {
	answer, err := r.converse(ctx, req, r.Catalogue.Prompt(string(domain.ModeFinance)))
	if err != nil {
		return err
	}

	var params map[string]any
	visible, found := r.completion(ctx, answer, "params", &params)
	if visible != "" {
		kb := r.advisorKeyboard()
		if found {
			kb = nil
		}
		if err := r.respond.Text(ctx, req.ChatID(), visible, kb); err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	state, err := r.Store.IncrementFinanceCount(ctx, req.ChatID())
	if err != nil {
		return fmt.Errorf("increment finance count: %w", err)
	}
	req.State = state

	model, err := r.Calculator.Calculate(ctx, params)
	if err != nil {
		return err
	}

	text := model.Text
	if text == "" {
		text = r.Catalogue.Text("finance_done")
	}
	if err := r.respond.Text(ctx, req.ChatID(), text, r.advisorKeyboard()); err != nil {
		return err
	}
	for _, f := range []*estate.File{model.Spreadsheet, model.PDF} {
		if f == nil || len(f.Data) == 0 {
			continue
		}
		if err := r.respond.File(ctx, req.ChatID(), f.Name, f.Data); err != nil {
			return err
		}
	}
	return r.maybeCollectContact(ctx, req)
}

func (r *Router) handleNews(ctx context.Context, req *Request) error {
	digest, err := r.News.Digest(ctx, req.Update.Text)
	if err != nil {
		return err
	}

	system := r.Catalogue.Prompt(string(domain.ModeEstateNews))
	if digest != "" {
		system += "\n\nСводка новостей:\n" + digest
	}
	answer, err := r.converse(ctx, req, system)
	if err != nil {
		return err
	}
	return r.respond.Text(ctx, req.ChatID(), r.orText(answer, "empty_answer"), r.advisorKeyboard())
}

type contactBlock struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (r *Router) handleContact(ctx context.Context, req *Request) error {
	answer, err := r.converse(ctx, req, r.Catalogue.Prompt(string(domain.ModeContactCollector)))
	if err != nil {
		return err
	}

	var block contactBlock
	visible, found := r.completion(ctx, answer, "contact", &block)
	details := contactDetails(block, req.Update.Text)
	if !found || (details.Phone == "" && details.Email == "") {
		return r.respond.Text(ctx, req.ChatID(), r.orText(visible, "contact_retry"), r.modeKeyboard(domain.ModeContactCollector))
	}

	if err := r.Mirror.UpdateContact(ctx, req.ChatID(), details); err != nil {
		return err
	}
	if err := r.Store.SetHasContact(ctx, req.ChatID()); err != nil {
		return fmt.Errorf("mark contact: %w", err)
	}
	req.User.HasContact = true

	if err := r.switchMode(ctx, req, domain.ModeGeneral); err != nil {
		return err
	}
	return r.respond.Text(ctx, req.ChatID(), r.orText(visible, "contact_thanks"), r.generalKeyboard())
}

// contactDetails prefers the model's block and falls back to what is found in the user's text.
func contactDetails(block contactBlock, userText string) crm.ContactDetails {
	found := phone.Extract(userText)
	details := crm.ContactDetails{Name: strings.TrimSpace(block.Name), Phone: found.Phone, Email: found.Email}
	if block.Phone != "" && phone.Valid(block.Phone) {
		details.Phone = phone.NormalizeE164(block.Phone)
	}
	if email := phone.Extract(block.Email).Email; email != "" {
		details.Email = email
	}
	return details
}

// handleManager serves a chat owned by a human manager. The text reaches the manager
// through the inbound CRM mirror; the bot stays silent.
func (r *Router) handleManager(ctx context.Context, req *Request) error {
	r.Log.WithContext(ctx).Debug("message kept for manager", slog.Int("message_id", req.Update.MessageID))
	return nil
}

// orText returns text, or the catalogue text key when the model left nothing visible.
func (r *Router) orText(text, key string) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	return r.Catalogue.Text(key)
}

// completion extracts the completion block of an answer. A malformed block is logged
// and treated as absent so the conversation continues.
func (r *Router) completion(ctx context.Context, answer, tag string, out any) (string, bool) {
	visible, found, err := extractBlock(answer, tag, out)
	if err != nil {
		r.Log.WithContext(ctx).Warn("malformed completion block", slog.String("tag", tag), slog.String("error", err.Error()))
		return visible, false
	}
	return visible, found
}
