package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added idx_versions_tx_id for transaction lookups
const currentSchemaVersion = 1

// SQLite is a Backend stored in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite creates or opens a ledger database at path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and the pragmas below are
	// per-connection, so the pool is pinned to a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Backend.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM state WHERE key = ?
	`, []byte(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return value, nil
}

// History implements Backend.
//
// Rows are drained before returning: with a single pooled connection an
// open result set would block the caller's next statement.
func (s *SQLite) History(ctx context.Context, key string) (HistoryIterator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, value, is_delete, timestamp_ns
		FROM versions
		WHERE key = ?
		ORDER BY seq ASC
	`, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var versions []KeyModification
	for rows.Next() {
		var (
			km       KeyModification
			isDelete int
			tsNanos  int64
		)
		if err := rows.Scan(&km.TxID, &km.Value, &isDelete, &tsNanos); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		km.IsDelete = isDelete == 1
		km.Timestamp = time.Unix(0, tsNanos).UTC()
		versions = append(versions, km)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return sliceCursor(versions), nil
}

// Scan implements Backend. Keys are compared as BLOBs, i.e. bytewise.
func (s *SQLite) Scan(ctx context.Context, start, end string) (StateIterator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value
		FROM state
		WHERE key >= ? AND key < ?
		ORDER BY key ASC
	`, []byte(start), []byte(end))
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var kvs []KV
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		kvs = append(kvs, KV{Key: string(key), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range: %w", err)
	}
	return sliceCursor(kvs), nil
}

// Apply implements Backend. All writes of the batch share one SQL
// transaction.
func (s *SQLite) Apply(ctx context.Context, batch Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	tsNanos := batch.Timestamp.UnixNano()
	for _, w := range batch.Writes {
		isDelete := 0
		if w.IsDelete {
			isDelete = 1
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO versions (key, tx_id, value, is_delete, timestamp_ns)
			VALUES (?, ?, ?, ?, ?)
		`, []byte(w.Key), batch.TxID, w.Value, isDelete, tsNanos)
		if err != nil {
			return fmt.Errorf("apply batch: insert version: %w", err)
		}

		if w.IsDelete {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM state WHERE key = ?
			`, []byte(w.Key)); err != nil {
				return fmt.Errorf("apply batch: delete state: %w", err)
			}
			continue
		}

		seq, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("apply batch: last insert id: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO state (key, value, version_seq)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				version_seq = excluded.version_seq
		`, []byte(w.Key), w.Value, seq)
		if err != nil {
			return fmt.Errorf("apply batch: upsert state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply batch: commit: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the tx_id index used when auditing a transaction's
// write set.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_versions_tx_id
		ON versions(tx_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// TxWrites returns the keys written by txID, in commit order.
func (s *SQLite) TxWrites(ctx context.Context, txID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM versions
		WHERE tx_id = ?
		ORDER BY seq ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query tx writes: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan tx write: %w", err)
		}
		keys = append(keys, string(key))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tx writes: %w", err)
	}
	return keys, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
