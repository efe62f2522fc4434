package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// dialect captures the differences between the SQLite and PostgreSQL backends.
// Queries are written with ? placeholders and rebound for PostgreSQL.
type dialect struct {
	name            string
	schema          string
	dollarParams    bool
	highConcurrency bool
	// nextListingSeq is the SQL value inserted into listings.seq.
	nextListingSeq string
}

var (
	sqliteDialect = dialect{
		name:           "SQLite",
		schema:         sqliteSchema,
		nextListingSeq: "(SELECT COALESCE(MAX(seq), 0) + 1 FROM listings)",
	}
	postgresDialect = dialect{
		name:            "PostgreSQL",
		schema:          postgresSchema,
		dollarParams:    true,
		highConcurrency: true,
		nextListingSeq:  "DEFAULT",
	}
)

// DB is a Store backed by database/sql.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent handlers.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, dialect: sqliteDialect}
	if _, err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return db.dialect.name
}

// SupportsHighConcurrency returns true for PostgreSQL.
func (db *DB) SupportsHighConcurrency() bool {
	return db.dialect.highConcurrency
}

// Migrate applies the application schema.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := db.conn.ExecContext(ctx, db.dialect.schema); err != nil {
		return nil, err
	}
	if !db.dialect.dollarParams {
		if err := db.addSQLiteListingSeq(ctx); err != nil {
			return nil, fmt.Errorf("listing seq: %w", err)
		}
	}
	return append([]string(nil), authTables...), nil
}

// addSQLiteListingSeq adds listings.seq to databases created before the
// column existed, numbering old rows in rowid order.
func (db *DB) addSQLiteListingSeq(ctx context.Context) error {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('listings') WHERE name = 'seq'").Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.conn.ExecContext(ctx, "ALTER TABLE listings ADD COLUMN seq INTEGER"); err != nil {
			return err
		}
	}
	if _, err := db.conn.ExecContext(ctx, "UPDATE listings SET seq = rowid WHERE seq IS NULL"); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS listings_seq_idx ON listings (seq)")
	return err
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (db *DB) rebind(query string) string {
	if !db.dialect.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.rebind(query), args...)
}

// tx wraps a transaction so queries are rebound the same way.
type tx struct {
	*sql.Tx
	db *DB
}

func (db *DB) begin(ctx context.Context) (*tx, error) {
	t, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{Tx: t, db: db}, nil
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, t.db.rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.QueryRowContext(ctx, t.db.rebind(query), args...)
}

// Timestamps are stored as fixed-width RFC 3339 text in both backends so
// they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// SQLite datetime('now') defaults.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
