package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/conversation"
)

// Builder turns conversation choices into telebot markup.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// Choices renders inline choice rows. Each choice's Data becomes its callback payload.
func (b *Builder) Choices(rows [][]conversation.Choice) (*telebot.ReplyMarkup, error) {
	builder := NewInlineKeyboard()
	for _, row := range rows {
		buttons := make([]InlineButton, 0, len(row))
		for _, choice := range row {
			unique, data, err := DecodeCallback(choice.Data)
			if err != nil {
				b.log.Warn("skipping choice without callback data", slog.String("label", choice.Label))
				continue
			}
			buttons = append(buttons, InlineButton{Text: choice.Label, Unique: unique, Data: data})
		}
		builder.AddRow(buttons...)
	}

	return builder.Build()
}

// Commands renders a reply keyboard of command shortcuts.
func (b *Builder) Commands(rows [][]string) *telebot.ReplyMarkup {
	return ReplyKeyboard(rows)
}
