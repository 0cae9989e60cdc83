package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/internal/domain/sentiment"
	"github.com/okian/reviewlens/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_records (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp           TEXT NOT NULL,
	product             TEXT NOT NULL DEFAULT '',
	rating              INTEGER NOT NULL,
	review              TEXT NOT NULL,
	predicted_sentiment TEXT NOT NULL,
	negative_prob       REAL NOT NULL,
	neutral_prob        REAL NOT NULL,
	positive_prob       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_records_timestamp ON analysis_records(timestamp);
`

// SQLiteStore keeps the analysis log in a SQLite table. Each append is one
// transactional INSERT. The database is opened per operation, so a file
// removed between calls is recreated by the next Append.
type SQLiteStore struct {
	path string
	opts storeOptions
	mu   sync.Mutex
}

// NewSQLiteStore returns a store backed by the SQLite database at path.
func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	return &SQLiteStore{path: path, opts: buildOptions(opts)}
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) dsn(readOnly bool) string {
	busy := s.opts.lockTimeout.Milliseconds()
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("file:%s?mode=%s&_busy_timeout=%d&_txlock=immediate", s.path, mode, busy)
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, r record.Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	db, err := sql.Open("sqlite3", s.dsn(false))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return classifySQLiteError(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLiteError(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analysis_records
		 (timestamp, product, rating, review, predicted_sentiment, negative_prob, neutral_prob, positive_prob)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.Format(record.TimestampLayout), r.Product, r.Rating, r.Review, r.Sentiment.String(),
		r.Confidences[sentiment.Negative], r.Confidences[sentiment.Neutral], r.Confidences[sentiment.Positive],
	)
	if err != nil {
		return classifySQLiteError(err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_records`).Scan(&count); err != nil {
		return classifySQLiteError(err)
	}
	if err := tx.Commit(); err != nil {
		return classifySQLiteError(err)
	}

	metrics.UpdateStoreRecords(count)
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]record.Record, error) {
	db, ok, err := s.openExisting(ctx)
	if err != nil || !ok {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT timestamp, product, rating, review, predicted_sentiment, negative_prob, neutral_prob, positive_prob
		FROM (SELECT * FROM analysis_records ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, limit)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []record.Record
	for rows.Next() {
		var (
			ts, label string
			r         record.Record
		)
		if err := rows.Scan(&ts, &r.Product, &r.Rating, &r.Review, &label,
			&r.Confidences[sentiment.Negative], &r.Confidences[sentiment.Neutral], &r.Confidences[sentiment.Positive]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
		}
		if r.Timestamp, err = record.ParseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
		}
		if r.Sentiment, err = sentiment.ParseLabel(label); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
		}
		r.Mismatch, _ = consistency.IsMismatched(r.Rating, r.Sentiment)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteError(err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, ok, err := s.openExisting(ctx)
	if err != nil || !ok {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_records`).Scan(&n); err != nil {
		return 0, classifySQLiteError(err)
	}
	return n, nil
}

// Close implements Store. Connections are not kept between operations.
func (s *SQLiteStore) Close() error { return nil }

// openExisting opens the database read-only. ok is false when there is no
// log yet: the file or the table is missing.
func (s *SQLiteStore) openExisting(ctx context.Context) (*sql.DB, bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	db, err := sql.Open("sqlite3", s.dsn(true))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'analysis_records'`).Scan(&n)
	if err != nil {
		_ = db.Close()
		return nil, false, classifySQLiteError(err)
	}
	if n == 0 {
		_ = db.Close()
		return nil, false, nil
	}
	return db, true, nil
}

// classifySQLiteError maps driver errors onto the store's error kinds.
func classifySQLiteError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	if strings.Contains(err.Error(), "not a database") {
		return fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreWrite, err)
}
