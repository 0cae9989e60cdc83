// Package repository persists analysis records in an append-only log.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/reviewlens/internal/domain/record"
)

// Store is the analysis log. Appends never reorder or edit earlier records.
type Store interface {
	// Append adds r after all existing records, creating the log if absent.
	// Returns ErrStoreWrite when the log cannot be written and
	// ErrStoreCorrupt when an existing log cannot be parsed; in both cases
	// the existing content is left untouched.
	Append(ctx context.Context, r record.Record) error

	// List returns the last limit records in append order. limit <= 0
	// returns every record. A missing log yields no records. The CSV driver
	// reads CRLF inside a field back as LF; see record.NormalizeNewlines.
	List(ctx context.Context, limit int) ([]record.Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// Supported drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Open builds the store named by driver at path.
func Open(driver, path string, opts ...Option) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty store path", ErrStoreWrite)
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverCSV:
		return NewCSVStore(path, opts...), nil
	case DriverSQLite:
		return NewSQLiteStore(path, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// tail returns the last limit elements of rs.
func tail(rs []record.Record, limit int) []record.Record {
	if limit <= 0 || limit >= len(rs) {
		return rs
	}
	return rs[len(rs)-limit:]
}
