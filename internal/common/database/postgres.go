package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleet-workflow/internal/common/config"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key.
const uniqueViolation = "23505"

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pooled connection. The pool is lazy; call Ping to check reachability.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// IsUniqueViolation reports whether err is a postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// Schema creates the tables used by the workflow. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id          BIGSERIAL PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL,
		description TEXT NOT NULL,
		creator_id  BIGINT NOT NULL,
		status      TEXT NOT NULL,
		type        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		login         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		role          TEXT NOT NULL,
		access_right  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id                   BIGSERIAL PRIMARY KEY,
		application_id       BIGINT NOT NULL UNIQUE REFERENCES applications(id),
		item                 TEXT NOT NULL,
		quantity             INTEGER NOT NULL,
		unit_price           BIGINT NOT NULL,
		supplier             TEXT NOT NULL,
		approved_by_manager  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_orders (
		id                      BIGSERIAL PRIMARY KEY,
		application_id          BIGINT NOT NULL UNIQUE REFERENCES applications(id),
		item                    TEXT NOT NULL,
		quantity                INTEGER NOT NULL,
		vehicle_id              BIGINT NOT NULL,
		approved_by_supervisor  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS job_orders (
		id                      BIGSERIAL PRIMARY KEY,
		application_id          BIGINT NOT NULL UNIQUE REFERENCES applications(id),
		vehicle_id              BIGINT NOT NULL,
		mechanic_id             BIGINT NOT NULL,
		task                    TEXT NOT NULL,
		approved_by_supervisor  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS maintenance_orders (
		id                      BIGSERIAL PRIMARY KEY,
		application_id          BIGINT NOT NULL UNIQUE REFERENCES applications(id),
		vehicle_id              BIGINT NOT NULL,
		kind                    TEXT NOT NULL,
		scheduled_for           TIMESTAMPTZ NOT NULL,
		approved_by_supervisor  BOOLEAN NOT NULL DEFAULT FALSE,
		approved_by_manager     BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS missions (
		id                      BIGSERIAL PRIMARY KEY,
		application_id          BIGINT NOT NULL UNIQUE REFERENCES applications(id),
		vehicle_id              BIGINT NOT NULL,
		driver_id               BIGINT NOT NULL,
		destination             TEXT NOT NULL,
		departure               TIMESTAMPTZ NOT NULL,
		approved_by_supervisor  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Migrate applies Schema in order.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
