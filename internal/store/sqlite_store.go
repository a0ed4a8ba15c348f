package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"selfheal/internal/logging"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLite driver names accepted by Config.SQLiteDriver.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// SQLiteStore keeps the corpus in a SQLite table. Every append is its own
// INSERT, so parallel sessions and processes serialize on the database lock
// instead of racing a read-modify-write of a shared file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the corpus database at path.
func NewSQLiteStore(ctx context.Context, driver, path string) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverMattn
	}
	dsn, err := sqliteDSN(driver, path)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("SQLite training store ready: driver=%s path=%s", driver, path)
	return s, nil
}

func sqliteDSN(driver, path string) (string, error) {
	switch driver {
	case DriverMattn:
		return path + "?_journal_mode=WAL&_busy_timeout=5000", nil
	case DriverModernc:
		return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver: %s (use '%s' or '%s')", driver, DriverMattn, DriverModernc)
	}
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_locator TEXT NOT NULL,
		healed_locator TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_training_original ON training_records(original_locator);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Append inserts one record. A zero RecordedAt is stamped with the current time.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_records (original_locator, healed_locator, recorded_at)
		VALUES (?, ?, ?)
	`, rec.OriginalLocator, rec.HealedLocator, rec.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert training record: %w", err)
	}
	logging.StoreDebug("Inserted training record: %s -> %s", rec.OriginalLocator, rec.HealedLocator)
	return nil
}

// LoadAll returns every record ordered by insertion.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT original_locator, healed_locator, recorded_at
		FROM training_records
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var recordedAt int64
		if err := rows.Scan(&rec.OriginalLocator, &rec.HealedLocator, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training record: %w", err)
		}
		rec.RecordedAt = time.Unix(0, recordedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training records: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
