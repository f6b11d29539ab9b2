package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/synapta-ai/synapta/internal/store"
	"github.com/synapta-ai/synapta/internal/store/storetest"
)

// TestPostgresStoreCompliance runs the store compliance suite against a real
// Postgres started via testcontainers. Gated behind SYNAPTA_PG_TEST because it
// needs a Docker daemon.
func TestPostgresStoreCompliance(t *testing.T) {
	if os.Getenv("SYNAPTA_PG_TEST") == "" {
		t.Skip("set SYNAPTA_PG_TEST=1 to run Postgres integration tests (requires Docker)")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "synapta",
			"POSTGRES_PASSWORD": "synapta",
			"POSTGRES_DB":       "synapta_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://synapta:synapta@%s:%s/synapta_test?sslmode=disable", host, port.Port())

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(dsn)
		if err != nil {
			t.Fatalf("open postgres store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
