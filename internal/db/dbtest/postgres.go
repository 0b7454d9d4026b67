//go:build integration

// Package dbtest starts a migrated Postgres in a container for repository integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"web-analytics/backend/internal/db"
	"web-analytics/backend/internal/db/migrate"
)

// SkipIfNoDocker skips the test when no Docker daemon answers.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// StartPostgres runs postgres:16-alpine, applies the embedded migrations and returns an open pool.
// The container is terminated when the test ends.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()
	SkipIfNoDocker(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "analytics",
				"POSTGRES_PASSWORD": "analytics",
				"POSTGRES_DB":       "analytics",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
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
	dsn := fmt.Sprintf("postgres://analytics:analytics@%s:%s/analytics?sslmode=disable", host, port.Port())

	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// InsertUser adds an owner row and returns its id.
func InsertUser(t *testing.T, conn *sql.DB, id, email string) string {
	t.Helper()
	_, err := conn.ExecContext(context.Background(),
		`INSERT INTO users (id, external_id, provider, email) VALUES ($1, $2, 'google', $3)`, id, "sub-"+id, email)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}
