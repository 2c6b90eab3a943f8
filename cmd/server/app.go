package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadmax/tempo/internal/config"
	"github.com/nadmax/tempo/internal/history"
	"github.com/nadmax/tempo/internal/notify"
	"github.com/nadmax/tempo/internal/registry"
	"github.com/nadmax/tempo/internal/repository"
	"github.com/nadmax/tempo/internal/scheduler"
	"github.com/nadmax/tempo/internal/store"
)

// app holds the components shared by every command.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	backend     store.Store
	db          *sql.DB
	docs        *store.Documents
	completions repository.CompletionRepository
	history     *history.Log
	registry    *registry.Registry
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Store == config.StorePostgres || cfg.ArchiveEnabled() {
		db, err := repository.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.db = db

		if err := repository.EnsureSchema(ctx, db); err != nil {
			a.close()
			return nil, err
		}
		a.completions = repository.NewPostgresCompletionRepository(db)
	}

	switch cfg.Store {
	case config.StoreRedis:
		s, err := store.NewRedisStoreWithPrefix(cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			a.close()
			return nil, err
		}
		a.backend = s
	case config.StoreMemory:
		a.backend = store.NewMemoryStore()
	case config.StorePostgres:
		a.backend = repository.NewPostgresDocumentStore(a.db)
	default:
		a.close()
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	codec, err := store.CodecByName(cfg.Codec)
	if err != nil {
		a.close()
		return nil, err
	}

	a.docs = store.NewDocuments(a.backend, codec)
	a.history = history.NewLog(a.docs, logger)

	notifier, err := a.notifier()
	if err != nil {
		a.close()
		return nil, err
	}

	a.registry = registry.New(a.docs, scheduler.New(cfg.TickInterval, logger), a.history,
		registry.WithLogger(logger),
		registry.WithNotifier(notifier),
	)

	logger.Info("components ready",
		"store", cfg.Store,
		"codec", codec.Name(),
		"archive", a.completions != nil,
		"email", cfg.EmailEnabled(),
		"tick_interval", cfg.TickInterval)

	return a, nil
}

func (a *app) notifier() (notify.Notifier, error) {
	sinks := notify.Multi{notify.NewLogNotifier(a.logger)}

	if a.cfg.EmailEnabled() {
		email, err := notify.NewEmailNotifier(notify.EmailConfig{
			APIKey:      a.cfg.Email.APIKey,
			FromName:    a.cfg.Email.FromName,
			FromAddress: a.cfg.Email.FromAddress,
			To:          a.cfg.Email.To,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure email notifications: %w", err)
		}
		sinks = append(sinks, email)
	}

	if a.completions != nil {
		sinks = append(sinks, notify.NewArchiveNotifier(a.completions))
	}

	return sinks, nil
}

// close releases every connection. The document store and the completion
// archive may share one *sql.DB, which is closed once here.
func (a *app) close() {
	if a.registry != nil {
		a.registry.Close()
	}

	var errs []error
	if a.backend != nil && a.cfg.Store != config.StorePostgres {
		errs = append(errs, a.backend.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("failed to close connections", "error", err)
	}
}
