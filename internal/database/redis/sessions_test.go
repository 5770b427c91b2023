//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-inbox/internal/web/middleware"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*SessionRepository, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client, err := Connect(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	return NewSessionRepository(client), func() {
		client.Close()
		container.Terminate(ctx)
	}
}

func TestSessionRepository(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	if repo == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	s := &middleware.StoredSession{ID: "abc", Data: []byte(`{"user_id":"u1","biometric_verified":true}`), CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || string(got.Data) != string(s.Data) {
		t.Fatalf("Get() = %+v", got)
	}

	if got, _ := repo.Get(ctx, "missing"); got != nil {
		t.Error("expected nil for missing session")
	}

	expired := &middleware.StoredSession{ID: "old", Data: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(-time.Second)}
	if err := repo.Save(ctx, expired); err != nil {
		t.Fatalf("Save(expired) error = %v", err)
	}
	if got, _ := repo.Get(ctx, "old"); got != nil {
		t.Error("expected expired session to be absent")
	}

	if err := repo.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := repo.Get(ctx, "abc"); got != nil {
		t.Error("expected session to be deleted")
	}
}
