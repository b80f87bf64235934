//go:build integration
// +build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a real Redis for the integration suite.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to ping Redis: %v", err)
	}
	return client
}

func TestRedisIntegration_CompareAndSwap(t *testing.T) {
	client := setupRedisContainer(t)
	store := NewRedis(client, WithStaleGrace(time.Minute))
	ctx := context.Background()

	entry := NewEntry([]byte(`{"id":1}`), time.Now(), time.Minute)

	if ok, err := store.AcquireLock(ctx, "it:lock:k", "a", 500*time.Millisecond); err != nil || !ok {
		t.Fatalf("AcquireLock(a) = %v, %v", ok, err)
	}
	if written, err := store.SetIfLockHeld(ctx, "it:lock:k", "a", "it:k", entry); err != nil || !written {
		t.Fatalf("SetIfLockHeld(a) = %v, %v", written, err)
	}

	time.Sleep(700 * time.Millisecond)

	if ok, err := store.AcquireLock(ctx, "it:lock:k", "b", time.Minute); err != nil || !ok {
		t.Fatalf("AcquireLock(b) after expiry = %v, %v", ok, err)
	}
	if written, _ := store.SetIfLockHeld(ctx, "it:lock:k", "a", "it:k2", entry); written {
		t.Error("stale holder write was not discarded")
	}
	if _, err := store.Get(ctx, "it:k2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(it:k2) error = %v, want ErrCacheMiss", err)
	}
	if released, _ := store.ReleaseLock(ctx, "it:lock:k", "b"); !released {
		t.Error("ReleaseLock(b) = false, want true")
	}
}
