//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-inbox/internal/config"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/web/middleware"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

func TestUserRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	repo := NewUserRepository(pool)

	first, err := repo.Create(ctx, []float32{0.1, 0.2, 0.3}, time.Now())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := repo.Create(ctx, []float32{0.9, 0.8, 0.7}, time.Now())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("ListWithEncodingsKeepsCreationOrder", func(t *testing.T) {
		users, err := repo.ListWithEncodings(ctx)
		if err != nil {
			t.Fatalf("ListWithEncodings() error = %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].ID != first.ID || users[1].ID != second.ID {
			t.Errorf("unexpected order: %s, %s", users[0].ID, users[1].ID)
		}
		if got := users[0].PrimaryEncoding(); len(got) != 3 || got[1] != 0.2 {
			t.Errorf("unexpected encoding %v", got)
		}
	})

	t.Run("MailLinkLifecycle", func(t *testing.T) {
		link := database.MailLink{
			Email:    "alice@example.com",
			Token:    database.Token{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)},
			LinkedAt: time.Now(),
		}
		if err := repo.SetMailLink(ctx, first.ID, link); err != nil {
			t.Fatalf("SetMailLink() error = %v", err)
		}

		if err := repo.UpdateToken(ctx, first.ID, database.Token{AccessToken: "a2", RefreshToken: "r1"}); err != nil {
			t.Fatalf("UpdateToken() error = %v", err)
		}

		got, err := repo.Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !got.IsLinked() || got.Mail.Email != "alice@example.com" {
			t.Fatalf("expected linked user, got %+v", got.Mail)
		}
		if got.Mail.Token.AccessToken != "a2" {
			t.Errorf("AccessToken = %q, want a2", got.Mail.Token.AccessToken)
		}

		if err := repo.ClearMailLink(ctx, first.ID); err != nil {
			t.Fatalf("ClearMailLink() error = %v", err)
		}
		got, _ = repo.Get(ctx, first.ID)
		if got.IsLinked() {
			t.Error("expected link to be cleared")
		}
		if err := repo.UpdateToken(ctx, first.ID, database.Token{AccessToken: "x"}); !errors.Is(err, database.ErrUserNotFound) {
			t.Errorf("UpdateToken() on unlinked user error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		if _, err := repo.Get(ctx, "not-a-uuid"); !errors.Is(err, database.ErrUserNotFound) {
			t.Errorf("Get() error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, second.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
	})
}

func TestSessionRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(pool)
	now := time.Now()

	live := &middleware.StoredSession{ID: "live", Data: []byte(`{"user_id":"u1"}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := &middleware.StoredSession{ID: "old", Data: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}

	for _, s := range []*middleware.StoredSession{live, expired} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save(%s) error = %v", s.ID, err)
		}
	}

	got, err := repo.Get(ctx, "live")
	if err != nil || got == nil {
		t.Fatalf("Get(live) = %v, %v", got, err)
	}
	if got, _ := repo.Get(ctx, "old"); got != nil {
		t.Error("expected expired session to be hidden")
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := repo.Get(ctx, "live"); got != nil {
		t.Error("expected session to be deleted")
	}
}
