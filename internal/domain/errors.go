package domain

import (
	"errors"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
)

var (
	// ErrStateNotFound is returned when a chat has no state row.
	ErrStateNotFound = errors.New("chat state not found")
	// ErrSearchSessionNotFound is returned when a chat has no active search session.
	ErrSearchSessionNotFound = errors.New("search session not found")
	// ErrPostShortLinkNotFound is returned for unknown post ids.
	ErrPostShortLinkNotFound = errors.New("post short link not found")
	// ErrUserNotFound is returned when a chat has no user row.
	ErrUserNotFound = errors.New("user not found")
)

// Finance calculator errors are answered to the user verbatim.
var (
	ErrMetroStationNotFound = apperr.UserMessage(
		"Не удалось найти указанную станцию метро. Проверьте название и попробуйте ещё раз.")
	ErrTransactionDictSumNotEqual100 = apperr.UserMessage(
		"Сумма долей в структуре сделки должна быть равна 100%. Уточните, пожалуйста, распределение.")
)
