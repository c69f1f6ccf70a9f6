package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
)

// DB implements ports.Database for PostgreSQL
type DB struct {
	conn    *sqlx.DB
	logger  ports.Logger
	metrics ports.Metrics
}

// NewPostgresAdapter connects, configures the pool and pings the server
func NewPostgresAdapter(cfg *config.DatabaseConfig, obs ports.Observability) (*DB, error) {
	logger, metrics, err := obs.ComponentsScoped("database.postgres")
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to PostgreSQL database",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)

	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		logger.Error("Failed to open database connection", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)

	db := NewFromConn(conn, logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL database")
	metrics.IncrementCounter("database.connection.success", map[string]string{"type": "postgres"})

	return db, nil
}

// NewFromConn wraps an open connection
func NewFromConn(conn *sqlx.DB, logger ports.Logger, metrics ports.Metrics) *DB {
	return &DB{
		conn:    conn,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs a query that doesn't return rows
func (d *DB) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()

	result, err := d.conn.ExecContext(ctx, query, args...)

	d.recordMetrics("execute", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to execute query", "error", err)
		return nil, err
	}

	return result, nil
}

// Select executes a query and scans the result into dest (multiple rows)
func (d *DB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	startTime := time.Now()

	err := d.conn.SelectContext(ctx, dest, query, args...)

	d.recordMetrics("select", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to select rows", "error", err, "query", query)
		return err
	}

	return nil
}

// Transaction executes fn within a transaction, rolling back on error or panic
func (d *DB) Transaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	startTime := time.Now()

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		d.logger.Error("Failed to begin transaction", "error", err)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Failed to rollback", "error", rbErr)
		}
		d.recordMetrics("transaction", time.Since(startTime), err)
		return err
	}

	if err := tx.Commit(); err != nil {
		d.logger.Error("Failed to commit", "error", err)
		d.recordMetrics("transaction", time.Since(startTime), err)
		return err
	}

	d.recordMetrics("transaction", time.Since(startTime), nil)
	return nil
}

// Ping verifies the connection
func (d *DB) Ping(ctx context.Context) error {
	startTime := time.Now()

	err := d.conn.PingContext(ctx)

	d.recordMetrics("ping", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to ping database", "error", err)
		return err
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	d.logger.Info("Closing database connection")
	return d.conn.Close()
}

// recordMetrics records operation metrics
func (d *DB) recordMetrics(operation string, duration time.Duration, err error) {
	d.metrics.RecordHistogram(
		fmt.Sprintf("database.%s.duration_seconds", operation),
		duration.Seconds(),
		nil,
	)

	if err != nil {
		d.metrics.IncrementCounter(fmt.Sprintf("database.%s.errors", operation), nil)
	} else {
		d.metrics.IncrementCounter(fmt.Sprintf("database.%s.success", operation), nil)
	}
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}
