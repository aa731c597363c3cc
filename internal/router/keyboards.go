package router

import (
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
)

// Callback data prefixes and actions.
const (
	PrefixExpert = "wewall_expert"
	PrefixSearch = "estate_search"

	ActionToGeneral         = "to_general"
	ActionToSearch          = "to_search"
	ActionToFinance         = "to_finance"
	ActionToNews            = "to_news"
	ActionToManager         = "to_manager"
	ActionBotFunctions      = "bot_functions"
	ActionCheckSubscription = "check_subscription"

	ActionNextOffer  = "next_offer"
	ActionNextEstate = "next_estate"
	ActionLikeOffer  = "like_offer"
)

// CheckSubscriptionData is the callback data of the verify button.
const CheckSubscriptionData = PrefixExpert + ":" + ActionCheckSubscription

// CallbackData is a parsed "prefix:action[:arg]" callback payload.
type CallbackData struct {
	Prefix string
	Action string
	Arg    string
}

// ParseCallbackData splits raw callback data. ok is false for malformed data.
func ParseCallbackData(raw string) (CallbackData, bool) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return CallbackData{}, false
	}
	d := CallbackData{Prefix: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		d.Arg = parts[2]
	}
	return d, true
}

func expertData(action string) string {
	return PrefixExpert + ":" + action
}

func searchData(action, offerID string) string {
	return PrefixSearch + ":" + action + ":" + offerID
}

func (r *Router) button(key, data string) telegram.Button {
	return telegram.Button{Text: r.Catalogue.Button(key), Data: data}
}

func (r *Router) generalKeyboard() *telegram.Keyboard {
	return telegram.InlineRows(
		r.button(ActionToSearch, expertData(ActionToSearch)),
		r.button(ActionToFinance, expertData(ActionToFinance)),
		r.button(ActionToNews, expertData(ActionToNews)),
		r.button(ActionToManager, expertData(ActionToManager)),
	)
}

func (r *Router) advisorKeyboard() *telegram.Keyboard {
	return telegram.InlineRows(
		r.button(ActionToGeneral, expertData(ActionToGeneral)),
		r.button(ActionToManager, expertData(ActionToManager)),
	)
}

func (r *Router) modeKeyboard(mode domain.Mode) *telegram.Keyboard {
	switch mode {
	case domain.ModeGeneral:
		return r.generalKeyboard()
	case domain.ModeContactCollector:
		return telegram.InlineRows(r.button(ActionToGeneral, expertData(ActionToGeneral)))
	default:
		return r.advisorKeyboard()
	}
}

func (r *Router) postKeyboard() *telegram.Keyboard {
	return telegram.InlineRows(
		r.button("contact_manager", expertData(ActionToManager)),
		r.button("bot_functions", expertData(ActionBotFunctions)),
	)
}

func (r *Router) offerKeyboard(session domain.SearchSession) *telegram.Keyboard {
	id := session.Current().Base().ID
	like := r.button(ActionLikeOffer, searchData(ActionLikeOffer, id))
	nextOffer := r.button(ActionNextOffer, searchData(ActionNextOffer, id))
	nextEstate := r.button(ActionNextEstate, searchData(ActionNextEstate, id))

	switch session.Keyboard() {
	case domain.KeyboardLastOffer:
		return telegram.InlineRows(like)
	case domain.KeyboardLastEstate:
		return telegram.InlineRows(nextOffer, like)
	default:
		return telegram.InlineRows(nextOffer, nextEstate, like)
	}
}

// SubscribeKeyboard links the channel and offers the verify button.
func SubscribeKeyboard(channelURL, subscribeLabel, verifyLabel string) *telegram.Keyboard {
	return telegram.InlineRows(
		telegram.Button{Text: subscribeLabel, URL: channelURL},
		telegram.Button{Text: verifyLabel, Data: CheckSubscriptionData},
	)
}
