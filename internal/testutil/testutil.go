// Package testutil provides shared test infrastructure for integration tests
// that need a real Postgres or Redis. Integration tests carry the
// "integration" build tag.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    pg := testutil.MustStartPostgres()
//	    code := m.Run()
//	    pg.Terminate()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContainer wraps a testcontainers container with a URL for connecting.
type TestContainer struct {
	Container testcontainers.Container
	URL       string
}

// MustStartPostgres starts a Postgres container for ledger tests.
// Calls os.Exit(1) on failure (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "warden",
			"POSTGRES_PASSWORD": "warden",
			"POSTGRES_DB":       "warden",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	return mustStart(req, "5432", func(host, port string) string {
		return fmt.Sprintf("postgres://warden:warden@%s:%s/warden?sslmode=disable", host, port)
	})
}

// MustStartRedis starts a Redis container for the shared aggressiveness window.
func MustStartRedis() *TestContainer {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	return mustStart(req, "6379", func(host, port string) string {
		return fmt.Sprintf("redis://%s:%s/0", host, port)
	})
}

// MustStartNATS starts a NATS server with JetStream enabled.
func MustStartNATS() *TestContainer {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2-alpine",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	}
	return mustStart(req, "4222", func(host, port string) string {
		return fmt.Sprintf("nats://%s:%s", host, port)
	})
}

func mustStart(req testcontainers.ContainerRequest, port string, url func(host, port string) string) *TestContainer {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start %s: %v\n", req.Image, err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	return &TestContainer{Container: container, URL: url(host, mapped.Port())}
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
