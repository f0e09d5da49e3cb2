// Package state holds the per-conversation expense-entry record, its step graph, and the stores that persist it.
package state

import (
	"context"
	"errors"
)

// ErrStateNotFound indicates that no record exists for the conversation.
var ErrStateNotFound = errors.New("conversation state not found")

// Storage defines the persistence contract for conversation state.
// Keys are opaque conversation identifiers; writes are last-write-wins.
type Storage interface {
	// GetState returns the stored record or ErrStateNotFound.
	GetState(ctx context.Context, key string) (*ConversationState, error)
	// SetState overwrites the record for key and stamps UpdatedAt.
	SetState(ctx context.Context, key string, state *ConversationState) error
	// ClearState removes the record for key. Removing a missing record is not an error.
	ClearState(ctx context.Context, key string) error
}

// Enumerator is implemented by stores that can list every live record.
type Enumerator interface {
	GetAllStates(ctx context.Context) (map[string]*ConversationState, error)
}
