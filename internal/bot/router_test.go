package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/conversation"
)

func TestEventFromContext(t *testing.T) {
	tb := newOfflineBot(t, "http://127.0.0.1:0")

	testCases := []struct {
		name   string
		update telebot.Update
		want   conversation.Event
	}{
		{
			name: "text message keyed by chat",
			update: telebot.Update{ID: 10, Message: &telebot.Message{
				ID:     5,
				Chat:   &telebot.Chat{ID: -100},
				Sender: &telebot.User{ID: 7},
				Text:   "  Makan siang ",
			}},
			want: conversation.Event{
				Kind: conversation.EventText, ConversationKey: "-100", ChatID: -100, UpdateID: 10, MessageID: 5, Text: "Makan siang",
			},
		},
		{
			name: "callback keyed by sender",
			update: telebot.Update{ID: 11, Callback: &telebot.Callback{
				ID:      "cb-1",
				Sender:  &telebot.User{ID: 7},
				Data:    "status:Sedekah",
				Message: &telebot.Message{ID: 6, Chat: &telebot.Chat{ID: -100}},
			}},
			want: conversation.Event{
				Kind: conversation.EventCallback, ConversationKey: "7", ChatID: 7, UpdateID: 11, MessageID: 6, CallbackID: "cb-1", Data: "status:Sedekah",
			},
		},
		{
			name:   "message without text",
			update: telebot.Update{ID: 12, Message: &telebot.Message{ID: 1, Chat: &telebot.Chat{ID: 1}}},
			want:   conversation.Event{Kind: conversation.EventNone, UpdateID: 12},
		},
		{
			name:   "callback without sender",
			update: telebot.Update{ID: 13, Callback: &telebot.Callback{ID: "cb-2", Data: "status:Duniawi"}},
			want:   conversation.Event{Kind: conversation.EventNone, UpdateID: 13},
		},
		{
			name:   "unsupported update",
			update: telebot.Update{ID: 14, EditedMessage: &telebot.Message{ID: 1, Chat: &telebot.Chat{ID: 1}, Text: "edited"}},
			want:   conversation.Event{Kind: conversation.EventNone, UpdateID: 14},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EventFromContext(tb.NewContext(tc.update)))
		})
	}
}
