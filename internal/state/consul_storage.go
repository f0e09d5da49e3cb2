package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	capi "github.com/hashicorp/consul/api"
)

const defaultConsulPrefix = "ledger-bot/state"

// ConsulStorage persists conversation states as JSON values in the Consul KV store.
type ConsulStorage struct {
	kv     *capi.KV
	prefix string
	log    *slog.Logger
}

// NewConsulStorage builds a store on top of an existing Consul client.
func NewConsulStorage(client *capi.Client, prefix string, log *slog.Logger) *ConsulStorage {
	if log == nil {
		log = slog.Default()
	}
	if prefix == "" {
		prefix = defaultConsulPrefix
	}

	return &ConsulStorage{
		kv:     client.KV(),
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}
}

// NewConsulClient creates a Consul API client for address, datacenter and ACL token.
func NewConsulClient(address, datacenter, token string) (*capi.Client, error) {
	cfg := capi.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	if datacenter != "" {
		cfg.Datacenter = datacenter
	}
	if token != "" {
		cfg.Token = token
	}

	client, err := capi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return client, nil
}

func (s *ConsulStorage) GetState(ctx context.Context, key string) (*ConversationState, error) {
	pair, _, err := s.kv.Get(s.key(key), (&capi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		s.log.Error("failed to get state from consul", slog.String("conversation", key), slog.Any("error", err))
		return nil, err
	}
	if pair == nil {
		return nil, ErrStateNotFound
	}

	var st ConversationState
	if err := json.Unmarshal(pair.Value, &st); err != nil {
		s.log.Error("failed to decode conversation state", slog.String("conversation", key), slog.Any("error", err))
		return nil, err
	}

	return &st, nil
}

func (s *ConsulStorage) SetState(ctx context.Context, key string, st *ConversationState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	pair := &capi.KVPair{Key: s.key(key), Value: data}
	if _, err := s.kv.Put(pair, (&capi.WriteOptions{}).WithContext(ctx)); err != nil {
		s.log.Error("failed to save state in consul", slog.String("conversation", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *ConsulStorage) ClearState(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(s.key(key), (&capi.WriteOptions{}).WithContext(ctx)); err != nil {
		s.log.Error("failed to clear conversation state", slog.String("conversation", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *ConsulStorage) GetAllStates(ctx context.Context) (map[string]*ConversationState, error) {
	pairs, _, err := s.kv.List(s.prefix+"/", (&capi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		s.log.Error("failed to list conversation states", slog.Any("error", err))
		return nil, err
	}

	result := make(map[string]*ConversationState, len(pairs))
	for _, pair := range pairs {
		var st ConversationState
		if err := json.Unmarshal(pair.Value, &st); err != nil {
			s.log.Warn("skipping undecodable state", slog.String("key", pair.Key), slog.Any("error", err))
			continue
		}
		result[strings.TrimPrefix(pair.Key, s.prefix+"/")] = &st
	}

	return result, nil
}

func (s *ConsulStorage) key(conversation string) string {
	return path.Join(s.prefix, conversation)
}
