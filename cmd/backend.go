package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-inbox/internal/config"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/database/mock"
	mongostore "github.com/kozaktomas/face-inbox/internal/database/mongo"
	"github.com/kozaktomas/face-inbox/internal/database/postgres"
	redisstore "github.com/kozaktomas/face-inbox/internal/database/redis"
	"github.com/kozaktomas/face-inbox/internal/web/handlers"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
)

// backend bundles the opened stores and how to release them.
type backend struct {
	users    database.UserWriter
	sessions middleware.SessionRepository // nil keeps sessions in memory only
	closers  []func(context.Context) error
	pingers  []handlers.Pinger
}

func (b *backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			slog.Warn("failed to close backend", "error", err)
		}
	}
}

// openBackend connects the user store named by the DATABASE_URL scheme and,
// when REDIS_URL is set, a redis session store. memory forces the in-memory store.
func openBackend(ctx context.Context, cfg *config.Config, memory bool) (*backend, error) {
	b := &backend{}

	kind, err := cfg.Database.Backend()
	if err != nil {
		return nil, err
	}
	if memory {
		kind = "memory"
	}

	switch kind {
	case "memory":
		slog.Warn("using in-memory user store, enrolments are lost on restart")
		b.users = mock.NewMockUserStore()
	case "postgres":
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return pool.Close() })
		b.pingers = append(b.pingers, pool.Ping)
		b.users = postgres.NewUserRepository(pool)
		b.sessions = postgres.NewSessionRepository(pool)
		slog.Info("using PostgreSQL backend")
	case "mongo":
		store, err := mongostore.Connect(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		b.closers = append(b.closers, store.Close)
		b.pingers = append(b.pingers, store.Ping)
		b.users = store.Users()
		slog.Info("using MongoDB backend", "database", cfg.Database.MongoDatabase)
	default:
		return nil, errors.New("DATABASE_URL environment variable is required (or use --memory)")
	}

	if cfg.Redis.URL != "" {
		client, err := redisstore.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.pingers = append(b.pingers, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.sessions = redisstore.NewSessionRepository(client)
		slog.Info("session persistence enabled (Redis)")
	} else if b.sessions != nil {
		slog.Info("session persistence enabled (PostgreSQL)")
	}

	return b, nil
}
