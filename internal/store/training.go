// Package store persists the training corpus: every locator the predictor
// healed, across runs. The corpus is append-only; records are never rewritten
// or deleted, and duplicates are kept because they weigh a pairing more
// heavily when the model is retrained.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"selfheal/internal/logging"
)

// Record is one healed pairing in the training corpus.
// JSON field names match the historical training_data.json layout.
type Record struct {
	OriginalLocator string    `json:"originalLocator"`
	HealedLocator   string    `json:"healedLocator"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// TrainingStore is a durable, append-only corpus of healing records.
type TrainingStore interface {
	// Append durably adds one record at the end of the corpus.
	Append(ctx context.Context, rec Record) error

	// LoadAll returns every record in append order.
	LoadAll(ctx context.Context) ([]Record, error)

	// Close releases the underlying file or database handle.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and locates the training store.
type Config struct {
	Backend      string `yaml:"backend"`       // file, sqlite
	Path         string `yaml:"path"`          // corpus file or database path
	SQLiteDriver string `yaml:"sqlite_driver"` // sqlite3 (cgo), sqlite (pure Go)
}

// DefaultConfig returns the JSON Lines corpus under models/.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendFile,
		Path:         filepath.Join("models", "training_data.jsonl"),
		SQLiteDriver: DriverMattn,
	}
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (TrainingStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("training store path is required")
	}
	logging.StoreDebug("Opening training store: backend=%s path=%s", cfg.Backend, cfg.Path)

	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLiteDriver, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported training store backend: %s (use 'file' or 'sqlite')", cfg.Backend)
	}
}
