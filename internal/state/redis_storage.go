package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	appredis "github.com/Proton-105/ledger-bot/pkg/redis"
)

const defaultKeyPrefix = "expense:state"

// RedisClient is the subset of the pkg/redis clients used for state persistence.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStorage persists conversation states in Redis with a sliding TTL.
type RedisStorage struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
// A zero ttl keeps records until they are cleared.
func NewRedisStorage(client RedisClient, prefix string, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStorage{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
		ttl:    ttl,
		log:    log,
	}
}

// GetState returns the stored state or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, key string) (*ConversationState, error) {
	data, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		if errors.Is(err, appredis.Nil) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get state from redis", slog.String("conversation", key), slog.Any("error", err))
		return nil, err
	}

	var st ConversationState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		s.log.Error("failed to decode conversation state", slog.String("conversation", key), slog.Any("error", err))
		return nil, err
	}

	return &st, nil
}

// SetState saves the provided state, refreshing its TTL.
func (s *RedisStorage) SetState(ctx context.Context, key string, st *ConversationState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		s.log.Error("failed to encode conversation state", slog.String("conversation", key), slog.Any("error", err))
		return err
	}

	if err := s.client.Set(ctx, s.key(key), data, s.ttl); err != nil {
		s.log.Error("failed to save state in redis", slog.String("conversation", key), slog.Any("error", err))
		return err
	}

	return nil
}

// ClearState removes the stored state for the given conversation.
func (s *RedisStorage) ClearState(ctx context.Context, key string) error {
	if err := s.client.Delete(ctx, s.key(key)); err != nil {
		s.log.Error("failed to clear conversation state", slog.String("conversation", key), slog.Any("error", err))
		return err
	}

	return nil
}

// GetAllStates retrieves every stored state by scanning the prefix.
func (s *RedisStorage) GetAllStates(ctx context.Context) (map[string]*ConversationState, error) {
	keys, err := s.client.ScanKeys(ctx, s.prefix+":*")
	if err != nil {
		s.log.Error("failed to scan conversation states", slog.Any("error", err))
		return nil, err
	}

	result := make(map[string]*ConversationState, len(keys))
	for _, redisKey := range keys {
		conversation := strings.TrimPrefix(redisKey, s.prefix+":")

		st, err := s.GetState(ctx, conversation)
		if err != nil {
			if errors.Is(err, ErrStateNotFound) {
				continue
			}
			return nil, err
		}

		result[conversation] = st
	}

	return result, nil
}

func (s *RedisStorage) key(conversation string) string {
	return s.prefix + ":" + conversation
}
