package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	selectStateQuery = `SELECT payload FROM conversation_states WHERE conversation_key = ?`
	upsertStateQuery = `INSERT INTO conversation_states (conversation_key, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (conversation_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	deleteStateQuery    = `DELETE FROM conversation_states WHERE conversation_key = ?`
	selectAllStateQuery = `SELECT conversation_key, payload FROM conversation_states`
)

// SQLStorage persists conversation states in the conversation_states table.
// It works with any sqlx driver whose dialect supports ON CONFLICT upserts (postgres, sqlite).
type SQLStorage struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewSQLStorage wraps db; the schema must already be migrated.
func NewSQLStorage(db *sqlx.DB, log *slog.Logger) *SQLStorage {
	if log == nil {
		log = slog.Default()
	}

	return &SQLStorage{db: db, log: log}
}

func (s *SQLStorage) GetState(ctx context.Context, key string) (*ConversationState, error) {
	var payload string
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(selectStateQuery), key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get state from database", slog.String("conversation", key), slog.Any("error", err))
		return nil, fmt.Errorf("select state: %w", err)
	}

	var st ConversationState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return &st, nil
}

func (s *SQLStorage) SetState(ctx context.Context, key string, st *ConversationState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	updatedAt := st.UpdatedAt.Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertStateQuery), key, string(data), updatedAt); err != nil {
		s.log.Error("failed to save state in database", slog.String("conversation", key), slog.Any("error", err))
		return fmt.Errorf("upsert state: %w", err)
	}

	return nil
}

func (s *SQLStorage) ClearState(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteStateQuery), key); err != nil {
		s.log.Error("failed to clear conversation state", slog.String("conversation", key), slog.Any("error", err))
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

func (s *SQLStorage) GetAllStates(ctx context.Context) (map[string]*ConversationState, error) {
	rows, err := s.db.QueryxContext(ctx, selectAllStateQuery)
	if err != nil {
		return nil, fmt.Errorf("select states: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*ConversationState)
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}

		var st ConversationState
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			s.log.Warn("skipping undecodable state", slog.String("conversation", key), slog.Any("error", err))
			continue
		}
		result[key] = &st
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	return result, nil
}
