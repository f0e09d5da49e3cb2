// Package conversation turns one inbound chat event plus the stored conversation
// state into the next state and the replies to send.
package conversation

import "github.com/Proton-105/ledger-bot/internal/state"

// EventKind distinguishes the inbound update shapes the bot reacts to.
type EventKind int

const (
	EventNone EventKind = iota
	EventText
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCallback:
		return "callback"
	default:
		return "none"
	}
}

// Event is a normalized inbound update.
type Event struct {
	Kind EventKind
	// ConversationKey identifies the stored state: chat id for messages, sender id for callbacks.
	ConversationKey string
	ChatID          int64
	UpdateID        int
	MessageID       int
	CallbackID      string
	// Data is the callback payload.
	Data string
	// Text is the trimmed message text.
	Text string
}

// Action tells the caller what to do with the stored record.
type Action int

const (
	ActionNone Action = iota
	ActionSave
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// EffectKind selects how an Effect is delivered.
type EffectKind int

const (
	EffectMessage EffectKind = iota
	EffectChoices
	EffectAck
)

// Choice is one inline button.
type Choice struct {
	Label string
	Data  string
}

// Effect is a single outbound notification.
type Effect struct {
	Kind     EffectKind
	Text     string
	Markdown bool
	// Choices is the inline keyboard for EffectChoices, one slice per row.
	Choices [][]Choice
	// Keyboard is an optional reply keyboard of command shortcuts, one slice per row.
	Keyboard [][]string
}

// Outcome is the result of handling one event. State is meaningful only for ActionSave.
type Outcome struct {
	Action  Action
	State   *state.ConversationState
	Effects []Effect
	// Label names the branch that handled the event, for logs and metrics.
	Label string
}

func textEffect(text string) Effect {
	return Effect{Kind: EffectMessage, Text: text}
}

func ack(text string) Effect {
	return Effect{Kind: EffectAck, Text: text}
}
