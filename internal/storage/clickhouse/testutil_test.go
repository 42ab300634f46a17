package clickhouse

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies the analytics schema. ClickHouse Exec takes one
// statement at a time, so the migration file is split on semicolons.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	content, err := os.ReadFile("../migrations/clickhouse/001_analytics.sql")
	if err != nil {
		t.Logf("Could not read analytics migration: %v, using inline schema", err)
		runInlineMigrations(t, conn)
		return
	}

	for _, stmt := range strings.Split(string(content), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, conn.Exec(ctx, stmt), "failed to apply statement:\n%s", stmt)
	}
}

// runInlineMigrations applies the schema directly without reading files.
func runInlineMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS daily_stats (
			day Date,
			pools_created UInt64,
			bets_placed UInt64,
			bet_volume Float64,
			unique_bettors UInt64,
			computed_at DateTime
		) ENGINE = ReplacingMergeTree(computed_at)
		ORDER BY (day)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS category_stats (
			day Date,
			category String,
			pools_created UInt64,
			bets_placed UInt64,
			bet_volume Float64,
			computed_at DateTime
		) ENGINE = ReplacingMergeTree(computed_at)
		ORDER BY (day, category)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hourly_activity (
			hour DateTime,
			events_indexed UInt64,
			bets_placed UInt64,
			slips_placed UInt64,
			computed_at DateTime
		) ENGINE = ReplacingMergeTree(computed_at)
		ORDER BY (hour)
	`)
	require.NoError(t, err)
}
