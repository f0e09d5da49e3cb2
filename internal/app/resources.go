package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	capi "github.com/hashicorp/consul/api"
	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/ledger-bot/internal/database"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/health"
	"github.com/Proton-105/ledger-bot/internal/state"
	"github.com/Proton-105/ledger-bot/pkg/config"
	appredis "github.com/Proton-105/ledger-bot/pkg/redis"
)

// Resources holds the connections behind the configured state backend.
type Resources struct {
	Storage state.Storage
	Redis   *appredis.Client
	DB      *sqlx.DB
	Consul  *capi.Client

	consulPrefix string
}

// NeedsRedis reports whether any enabled component talks to Redis.
func NeedsRedis(cfg *config.Config) bool {
	return cfg.State.Backend == "redis" || cfg.Idempotency.Enabled || cfg.Outbox.Enabled
}

// OpenResources connects the state backend selected by state.backend, retrying
// transient connection failures.
func OpenResources(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Resources, error) {
	if log == nil {
		log = slog.Default()
	}

	res := &Resources{}

	if NeedsRedis(cfg) {
		err := apperrors.WithRetry(ctx, func() error {
			client, err := appredis.New(ctx, cfg.Redis)
			if err != nil {
				return apperrors.NewStorageError(err)
			}
			res.Redis = client
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	switch cfg.State.Backend {
	case "memory":
		res.Storage = state.NewMemoryStorage()
	case "redis":
		var client state.RedisClient = res.Redis
		if cfg.Metrics.Enabled {
			client = appredis.NewMetricsClient(res.Redis)
		}
		res.Storage = state.NewRedisStorage(client, cfg.State.KeyPrefix, cfg.State.TTL, log)
	case "consul":
		client, err := state.NewConsulClient(cfg.Consul.Address, cfg.Consul.Datacenter, cfg.Consul.Token)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Consul = client
		res.consulPrefix = cfg.Consul.Prefix
		res.Storage = state.NewConsulStorage(client, cfg.Consul.Prefix, log)
	case "postgres", "sqlite":
		db, err := OpenDatabase(ctx, cfg, log)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.DB = db
		res.Storage = state.NewSQLStorage(db, log)
	default:
		_ = res.Close()
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}

	log.Info("state storage ready", slog.String("backend", cfg.State.Backend))

	return res, nil
}

// OpenDatabase connects the SQL backend and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB
	err := apperrors.WithRetry(ctx, func() error {
		var err error
		db, err = database.Open(ctx, cfg.State.Backend, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return apperrors.NewStorageError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	applied, err := database.NewMigrator(db, log).Apply(ctx, database.Migrations())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("database migrations applied", slog.Any("versions", applied))
	}

	return db, nil
}

// AddChecks registers a health check for every open connection.
func (r *Resources) AddChecks(checker *health.Checker) {
	if r.Redis != nil {
		checker.AddCheck("redis", health.NewRedisChecker(r.Redis))
	}
	if r.DB != nil {
		checker.AddCheck("database", health.NewDBChecker(r.DB))
	}
	if r.Consul != nil {
		checker.AddCheck("consul", health.NewConsulChecker(r.Consul, r.consulPrefix))
	}
}

// Close releases every open connection.
func (r *Resources) Close() error {
	var errs []error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
