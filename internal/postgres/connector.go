// Package postgres opens the bookmark database and keeps its schema current.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrSnakeDoc/smartmarks/internal/connect"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// ConnectOptions configures the pool and the start-up retry loop.
type ConnectOptions struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retry           connect.Policy
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open opens a pgx-backed *sql.DB and waits until the server answers.
func Open(ctx context.Context, opts ConnectOptions, log logger.Logger) (*sql.DB, error) {
	db, err := sqlOpen("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := connect.WithRetry(ctx, "postgres", redactDSN(opts.DSN), opts.Retry, db.PingContext, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// redactDSN strips credentials so the DSN can be logged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "postgres"
	}
	return u.Host + u.Path
}
