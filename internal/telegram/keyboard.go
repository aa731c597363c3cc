package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Button is an inline keyboard button carrying callback data, or a link when URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard describes the markup attached to an outgoing message.
// At most one of Inline, Reply or Remove is used.
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
	Remove bool
}

// InlineRows builds an inline keyboard with one button per row.
func InlineRows(buttons ...Button) *Keyboard {
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []Button{b})
	}
	return &Keyboard{Inline: rows}
}

// ReplyButtons builds a resized reply keyboard with one button per row.
func ReplyButtons(texts ...string) *Keyboard {
	rows := make([][]string, 0, len(texts))
	for _, t := range texts {
		rows = append(rows, []string{t})
	}
	return &Keyboard{Reply: rows}
}

// RemoveKeyboard hides a previously sent reply keyboard.
func RemoveKeyboard() *Keyboard {
	return &Keyboard{Remove: true}
}

func (k *Keyboard) markup() interface{} {
	switch {
	case k == nil:
		return nil
	case k.Remove:
		return tgbotapi.NewRemoveKeyboard(true)
	case len(k.Inline) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.Inline))
		for _, row := range k.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
					continue
				}
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(k.Reply) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(k.Reply))
		for _, row := range k.Reply {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	default:
		return nil
	}
}
