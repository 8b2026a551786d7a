//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"journey/internal/storage"
	"journey/internal/storage/storagetest"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL container and returns its URL.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "journey",
			"POSTGRES_PASSWORD": "journey",
			"POSTGRES_DB":       "journey",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return fmt.Sprintf("postgres://journey:journey@%s:%s/journey?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}

	// Each subtest gets a fresh database so the seeded state is predictable.
	storagetest.Run(t, func(t *testing.T) storage.Store {
		url := startPostgres(t)
		s, err := New(context.Background(), url)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
