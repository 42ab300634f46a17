// Package main applies the embedded SQL migrations and exits. Postgres
// is mandatory; ClickHouse is migrated only when CLICKHOUSE_DSN is set.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"bitr-backend/internal/storage/migrations"
	pgstore "bitr-backend/internal/storage/postgres"
)

func main() {
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall migration timeout")
	flag.Parse()

	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags)

	if *databaseURL == "" {
		logger.Fatal("--database-url or DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *databaseURL)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations: %v", err)
	}
	logger.Println("Postgres migrations applied")

	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse migrations: %v", err)
		}
		conn.Close()
		logger.Println("ClickHouse migrations applied")
	}
}
