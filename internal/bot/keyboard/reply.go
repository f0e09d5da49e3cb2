package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// ReplyKeyboard builds a resizable reply keyboard with one button per label.
func ReplyKeyboard(rows [][]string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	replyRows := make([]telebot.Row, 0, len(rows))
	for _, labels := range rows {
		if len(labels) == 0 {
			continue
		}

		buttons := make([]telebot.Btn, 0, len(labels))
		for _, label := range labels {
			buttons = append(buttons, markup.Text(label))
		}
		replyRows = append(replyRows, markup.Row(buttons...))
	}

	markup.Reply(replyRows...)
	return markup
}
