// Package postgres implements the event log adapter on PostgreSQL. Two
// tables per schema: streams tracks each stream's current version,
// events holds the log itself.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/burrowkit/burrow/adapters"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Version sentinels, mirrored from the adapters package.
const (
	AnyVersion   int64 = -1
	NoStream     int64 = 0
	StreamExists int64 = -2
)

// Aliases for the shared adapter errors, matchable with errors.Is.
var (
	ErrAdapterClosed  = adapters.ErrAdapterClosed
	ErrEmptyStreamID  = adapters.ErrEmptyStreamID
	ErrNoEvents       = adapters.ErrNoEvents
	ErrConflict       = adapters.ErrConflict
	ErrStreamNotFound = adapters.ErrStreamNotFound
	ErrInvalidVersion = adapters.ErrInvalidVersion
)

var (
	_ adapters.EventStoreAdapter = (*PostgresAdapter)(nil)
	_ adapters.HealthChecker     = (*PostgresAdapter)(nil)
)

// PostgresAdapter stores the event log in PostgreSQL. Append runs in a
// transaction that takes a row lock on the stream, making the version
// check and the batch insert atomic against concurrent writers.
type PostgresAdapter struct {
	db     *sql.DB
	schema string
	closed bool
}

// Option configures a PostgresAdapter.
type Option func(*PostgresAdapter)

// WithSchema sets the schema the adapter's tables live in.
func WithSchema(schema string) Option {
	return func(a *PostgresAdapter) { a.schema = schema }
}

// WithMaxConnections caps open connections on the pool.
func WithMaxConnections(n int) Option {
	return func(a *PostgresAdapter) { a.db.SetMaxOpenConns(n) }
}

// WithMaxIdleConnections caps idle connections on the pool.
func WithMaxIdleConnections(n int) Option {
	return func(a *PostgresAdapter) { a.db.SetMaxIdleConns(n) }
}

// WithConnectionMaxLifetime bounds how long a pooled connection lives.
func WithConnectionMaxLifetime(d time.Duration) Option {
	return func(a *PostgresAdapter) { a.db.SetConnMaxLifetime(d) }
}

// NewAdapter opens a connection pool via the pgx stdlib driver and
// wraps it in an adapter. The schema defaults to "burrow".
func NewAdapter(connStr string, opts ...Option) (*PostgresAdapter, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, wrapErr("open database", err)
	}
	return NewAdapterWithDB(db, opts...), nil
}

// NewAdapterWithDB wraps an existing connection pool.
func NewAdapterWithDB(db *sql.DB, opts ...Option) *PostgresAdapter {
	a := &PostgresAdapter{db: db, schema: "burrow"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func wrapErr(op string, err error) error {
	return fmt.Errorf("burrow/postgres: failed to %s: %w", op, err)
}

// q substitutes the adapter's schema into a query template.
func (a *PostgresAdapter) q(template string) string {
	return fmt.Sprintf(template, a.schema)
}

// Initialize creates the schema and tables if they are missing.
func (a *PostgresAdapter) Initialize(ctx context.Context) error {
	return a.Migrate(ctx)
}

// Migrate applies the schema. Every statement is idempotent, so running
// it again against an existing database is harmless.
func (a *PostgresAdapter) Migrate(ctx context.Context) error {
	statements := []struct {
		op  string
		sql string
	}{
		{"create schema", a.q(`CREATE SCHEMA IF NOT EXISTS %s`)},
		{"create streams table", a.q(`
			CREATE TABLE IF NOT EXISTS %s.streams (
				id              BIGSERIAL PRIMARY KEY,
				stream_id       VARCHAR(500) NOT NULL UNIQUE,
				category        VARCHAR(250) NOT NULL,
				version         BIGINT NOT NULL DEFAULT 0,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)},
		{"create events table", a.q(`
			CREATE TABLE IF NOT EXISTS %s.events (
				global_position BIGSERIAL PRIMARY KEY,
				stream_id       VARCHAR(500) NOT NULL,
				version         BIGINT NOT NULL,
				event_id        UUID NOT NULL DEFAULT gen_random_uuid(),
				event_type      VARCHAR(500) NOT NULL,
				data            JSONB NOT NULL,
				metadata        JSONB,
				timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(stream_id, version)
			)`)},
		{"create index", a.q(`CREATE INDEX IF NOT EXISTS idx_streams_category ON %s.streams(category)`)},
		{"create index", a.q(`CREATE INDEX IF NOT EXISTS idx_events_stream ON %s.events(stream_id, version)`)},
		{"create index", a.q(`CREATE INDEX IF NOT EXISTS idx_events_type ON %s.events(event_type)`)},
		{"create index", a.q(`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON %s.events(timestamp)`)},
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt.sql); err != nil {
			return wrapErr(stmt.op, err)
		}
	}
	return nil
}

// Append stores a batch of events on a stream, all in one transaction.
// The stream row is locked for the duration, so the version check holds
// through the inserts and readers never see a partial batch.
func (a *PostgresAdapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	switch {
	case a.closed:
		return nil, ErrAdapterClosed
	case streamID == "":
		return nil, ErrEmptyStreamID
	case len(events) == 0:
		return nil, ErrNoEvents
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, exists, err := a.lockStream(ctx, tx, streamID)
	if err != nil {
		return nil, err
	}
	if err := adapters.CheckVersion(streamID, expectedVersion, version, exists); err != nil {
		return nil, err
	}

	if !exists {
		_, err = tx.ExecContext(ctx,
			a.q(`INSERT INTO %s.streams (stream_id, category, version) VALUES ($1, $2, 0)`),
			streamID, adapters.ExtractCategory(streamID))
		if err != nil {
			return nil, wrapErr("create stream", err)
		}
	}

	insertSQL := a.q(`
		INSERT INTO %s.events (stream_id, version, event_type, data, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING global_position, event_id, timestamp`)

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		version++

		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, wrapErr("marshal metadata", err)
		}

		stored[i] = adapters.StoredEvent{
			StreamID: streamID,
			Type:     event.Type,
			Data:     event.Data,
			Metadata: event.Metadata,
			Version:  version,
		}
		err = tx.QueryRowContext(ctx, insertSQL,
			streamID, version, event.Type, event.Data, metadataJSON,
		).Scan(&stored[i].GlobalPosition, &stored[i].ID, &stored[i].Timestamp)
		if err != nil {
			return nil, wrapErr("insert event", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		a.q(`UPDATE %s.streams SET version = $1, updated_at = NOW() WHERE stream_id = $2`),
		version, streamID)
	if err != nil {
		return nil, wrapErr("update stream version", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit transaction", err)
	}
	return stored, nil
}

// lockStream reads a stream's version under FOR UPDATE, reporting
// whether the stream exists.
func (a *PostgresAdapter) lockStream(ctx context.Context, tx *sql.Tx, streamID string) (int64, bool, error) {
	var version int64
	err := tx.QueryRowContext(ctx,
		a.q(`SELECT version FROM %s.streams WHERE stream_id = $1 FOR UPDATE`),
		streamID).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, wrapErr("get stream version", err)
	}
	return version, true, nil
}

// Load returns a stream's events with versions greater than
// fromVersion, in version order. A nonexistent stream yields an empty
// slice.
func (a *PostgresAdapter) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	rows, err := a.db.QueryContext(ctx, a.q(`
		SELECT global_position, event_id, stream_id, version, event_type, data, metadata, timestamp
		FROM %s.events
		WHERE stream_id = $1 AND version > $2
		ORDER BY version`), streamID, fromVersion)
	if err != nil {
		return nil, wrapErr("load events", err)
	}
	defer rows.Close()

	events := make([]adapters.StoredEvent, 0)
	for rows.Next() {
		var event adapters.StoredEvent
		var metadataJSON []byte

		dest := []interface{}{
			&event.GlobalPosition, &event.ID, &event.StreamID, &event.Version,
			&event.Type, &event.Data, &metadataJSON, &event.Timestamp,
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapErr("scan event", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, wrapErr("unmarshal metadata", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate events", err)
	}
	return events, nil
}

// GetStreamInfo returns a stream's metadata.
func (a *PostgresAdapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	var info adapters.StreamInfo
	err := a.db.QueryRowContext(ctx, a.q(`
		SELECT stream_id, category, version, created_at, updated_at
		FROM %s.streams
		WHERE stream_id = $1`), streamID).Scan(
		&info.StreamID, &info.Category, &info.Version, &info.CreatedAt, &info.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, adapters.NewStreamNotFoundError(streamID)
	case err != nil:
		return nil, wrapErr("get stream info", err)
	}

	// Versions are contiguous from 1, so the version doubles as the count.
	info.EventCount = info.Version
	return &info, nil
}

// GetLastPosition returns the global position of the most recent event,
// or 0 when the log is empty.
func (a *PostgresAdapter) GetLastPosition(ctx context.Context) (uint64, error) {
	if a.closed {
		return 0, ErrAdapterClosed
	}

	var pos sql.NullInt64
	if err := a.db.QueryRowContext(ctx, a.q(`SELECT MAX(global_position) FROM %s.events`)).Scan(&pos); err != nil {
		return 0, wrapErr("get last position", err)
	}
	if !pos.Valid {
		return 0, nil
	}
	return uint64(pos.Int64), nil
}

// Close marks the adapter closed and closes the pool.
func (a *PostgresAdapter) Close() error {
	a.closed = true
	return a.db.Close()
}

// Ping checks database connectivity.
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if a.closed {
		return ErrAdapterClosed
	}
	return a.db.PingContext(ctx)
}

// DB exposes the underlying pool, mainly for tests and migrations.
func (a *PostgresAdapter) DB() *sql.DB { return a.db }

// Schema returns the schema the adapter's tables live in.
func (a *PostgresAdapter) Schema() string { return a.schema }
