package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/keyboard"
	"github.com/Proton-105/ledger-bot/internal/conversation"
)

// TextOptions tunes a plain text message.
type TextOptions struct {
	Markdown bool
	// Keyboard attaches a reply keyboard of shortcuts, one slice per row.
	Keyboard [][]string
}

// Notifier delivers replies to the chat platform.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, opts TextOptions) error
	SendChoices(ctx context.Context, chatID int64, text string, choices [][]conversation.Choice) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// TelebotNotifier sends replies through the Telegram Bot API. Each call is a single attempt.
type TelebotNotifier struct {
	bot      *telebot.Bot
	keyboard *keyboard.Builder
	log      *slog.Logger
}

func NewTelebotNotifier(tb *telebot.Bot, kb *keyboard.Builder, log *slog.Logger) *TelebotNotifier {
	if log == nil {
		log = slog.Default()
	}
	if kb == nil {
		kb = keyboard.NewBuilder(log)
	}

	return &TelebotNotifier{bot: tb, keyboard: kb, log: log}
}

func (n *TelebotNotifier) SendText(_ context.Context, chatID int64, text string, opts TextOptions) error {
	sendOpts := &telebot.SendOptions{}
	if opts.Markdown {
		sendOpts.ParseMode = telebot.ModeMarkdown
	}
	if len(opts.Keyboard) > 0 {
		sendOpts.ReplyMarkup = n.keyboard.Commands(opts.Keyboard)
	}

	if _, err := n.bot.Send(telebot.ChatID(chatID), text, sendOpts); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (n *TelebotNotifier) SendChoices(_ context.Context, chatID int64, text string, choices [][]conversation.Choice) error {
	markup, err := n.keyboard.Choices(choices)
	if err != nil {
		return fmt.Errorf("build choices: %w", err)
	}

	if _, err := n.bot.Send(telebot.ChatID(chatID), text, markup); err != nil {
		return fmt.Errorf("send choices: %w", err)
	}
	return nil
}

func (n *TelebotNotifier) AnswerCallback(_ context.Context, callbackID, text string) error {
	resp := &telebot.CallbackResponse{Text: text}
	if err := n.bot.Respond(&telebot.Callback{ID: callbackID}, resp); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
