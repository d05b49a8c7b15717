package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/burrowkit/burrow/adapters"
)

var _ adapters.IdempotencyStore = (*IdempotencyStore)(nil)

// Schema and table names are interpolated into DDL, so they are vetted
// against this pattern first and quoted on use.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func validateIdentifier(name, kind string) error {
	var reason string
	switch {
	case name == "":
		reason = "cannot be empty"
	case len(name) > 63:
		reason = "exceeds 63 characters"
	case !identifierPattern.MatchString(name):
		reason = "contains invalid characters"
	default:
		return nil
	}
	return fmt.Errorf("burrow/postgres/idempotency: %s name %s", kind, reason)
}

func idempErr(op string, err error) error {
	return fmt.Errorf("burrow/postgres/idempotency: failed to %s: %w", op, err)
}

// IdempotencyStore keeps processed-command records in a PostgreSQL
// table. Expired records are filtered on read and removed by Cleanup.
type IdempotencyStore struct {
	db     *sql.DB
	schema string
	table  string
}

// IdempotencyStoreOption configures an IdempotencyStore.
type IdempotencyStoreOption func(*IdempotencyStore)

// WithIdempotencySchema sets the schema the table lives in.
func WithIdempotencySchema(schema string) IdempotencyStoreOption {
	return func(s *IdempotencyStore) { s.schema = schema }
}

// WithIdempotencyTable sets the table name.
func WithIdempotencyTable(table string) IdempotencyStoreOption {
	return func(s *IdempotencyStore) { s.table = table }
}

// NewIdempotencyStore creates a store on an existing connection pool.
// Defaults to public.burrow_idempotency.
func NewIdempotencyStore(db *sql.DB, opts ...IdempotencyStoreOption) *IdempotencyStore {
	s := &IdempotencyStore{db: db, schema: "public", table: "burrow_idempotency"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewIdempotencyStoreFromAdapter creates a store sharing a
// PostgresAdapter's pool and schema.
func NewIdempotencyStoreFromAdapter(adapter *PostgresAdapter, opts ...IdempotencyStoreOption) *IdempotencyStore {
	return NewIdempotencyStore(adapter.db,
		append([]IdempotencyStoreOption{WithIdempotencySchema(adapter.schema)}, opts...)...)
}

// fullTableName returns the quoted, schema-qualified table name.
func (s *IdempotencyStore) fullTableName() string {
	return quoteIdentifier(s.schema) + "." + quoteIdentifier(s.table)
}

// q substitutes the qualified table name into a query template.
func (s *IdempotencyStore) q(template string) string {
	return fmt.Sprintf(template, s.fullTableName())
}

// Initialize creates the table and its indexes if they are missing.
func (s *IdempotencyStore) Initialize(ctx context.Context) error {
	for _, ident := range []struct{ name, kind string }{
		{s.schema, "schema"},
		{s.table, "table"},
	} {
		if err := validateIdentifier(ident.name, ident.kind); err != nil {
			return err
		}
	}

	ddl := s.q(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			key          VARCHAR(255) PRIMARY KEY,
			command_type VARCHAR(255) NOT NULL,
			aggregate_id VARCHAR(255),
			version      BIGINT,
			error        TEXT,
			success      BOOLEAN NOT NULL DEFAULT false,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ` + quoteIdentifier("idx_"+s.table+"_expires_at") + ` ON %[1]s (expires_at);
		CREATE INDEX IF NOT EXISTS ` + quoteIdentifier("idx_"+s.table+"_processed_at") + ` ON %[1]s (processed_at);`)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return idempErr("create table", err)
	}
	return nil
}

// Exists reports whether a non-expired record exists for the key.
func (s *IdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT EXISTS(SELECT 1 FROM %s WHERE key = $1 AND expires_at > NOW())`),
		key).Scan(&exists)
	if err != nil {
		return false, idempErr("check existence", err)
	}
	return exists, nil
}

// nullable maps zero values to NULL so optional columns stay NULL
// instead of storing empty strings and zeros.
func nullable[T comparable](v T) interface{} {
	var zero T
	if v == zero {
		return nil
	}
	return v
}

// Store upserts a record under its key.
func (s *IdempotencyStore) Store(ctx context.Context, record *adapters.IdempotencyRecord) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO %s (key, command_type, aggregate_id, version, error, success, processed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			command_type = EXCLUDED.command_type,
			aggregate_id = EXCLUDED.aggregate_id,
			version      = EXCLUDED.version,
			error        = EXCLUDED.error,
			success      = EXCLUDED.success,
			processed_at = EXCLUDED.processed_at,
			expires_at   = EXCLUDED.expires_at`),
		record.Key, record.CommandType,
		nullable(record.AggregateID), nullable(record.Version), nullable(record.Error),
		record.Success, record.ProcessedAt, record.ExpiresAt)
	if err != nil {
		return idempErr("store record", err)
	}
	return nil
}

// Get returns the record for the key, or nil, nil when it is absent or
// expired.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*adapters.IdempotencyRecord, error) {
	var (
		record               adapters.IdempotencyRecord
		aggregateID, errText sql.NullString
		version              sql.NullInt64
	)
	dest := []interface{}{
		&record.Key, &record.CommandType, &aggregateID, &version,
		&errText, &record.Success, &record.ProcessedAt, &record.ExpiresAt,
	}
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT key, command_type, aggregate_id, version, error, success, processed_at, expires_at
		FROM %s
		WHERE key = $1 AND expires_at > NOW()`), key).Scan(dest...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, idempErr("get record", err)
	}

	record.AggregateID = aggregateID.String
	record.Version = version.Int64
	record.Error = errText.String
	return &record, nil
}

// Delete removes the record for the key.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM %s WHERE key = $1`), key); err != nil {
		return idempErr("delete record", err)
	}
	return nil
}

// Cleanup removes records processed before olderThan ago, plus any that
// have expired, and reports how many were removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM %s WHERE processed_at < $1 OR expires_at < NOW()`),
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, idempErr("cleanup records", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, idempErr("get affected rows", err)
	}
	return count, nil
}

// Count returns the total number of stored records.
func (s *IdempotencyStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM %s`)).Scan(&count); err != nil {
		return 0, idempErr("count records", err)
	}
	return count, nil
}

// Clear truncates the table.
func (s *IdempotencyStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.q(`TRUNCATE TABLE %s`)); err != nil {
		return idempErr("clear table", err)
	}
	return nil
}
