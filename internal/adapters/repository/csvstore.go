package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/pkg/logger"
	"github.com/okian/reviewlens/pkg/metrics"
)

// CSVStore keeps the analysis log in a single CSV file whose header is
// record.Columns.
//
// Append parses the whole existing file before writing so that a log that no
// longer parses is reported instead of extended, then appends the new row in
// place. Earlier bytes are never rewritten. Writers in this process are
// serialized by a mutex and writers in other processes by a flock on
// "<path>.lock".
type CSVStore struct {
	path string
	opts storeOptions
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by the CSV file at path. Nothing is
// created until the first Append.
func NewCSVStore(path string, opts ...Option) *CSVStore {
	return &CSVStore{path: path, opts: buildOptions(opts)}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

// Append implements Store.
func (s *CSVStore) Append(ctx context.Context, r record.Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	lock, err := acquireLock(ctx, s.lockPath(), true, s.opts.lockTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	defer func() { _ = lock.release() }()

	existing, size, trailingNewline, err := s.load()
	if err != nil {
		if s.opts.logger != nil {
			s.opts.logger.Warn(ctx, "refusing to append to analysis log",
				logger.String("path", s.path), logger.Error(err))
		}
		return err
	}

	var buf bytes.Buffer
	if size > 0 && !trailingNewline {
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if size == 0 {
		_ = w.Write(record.Columns)
	}
	_ = w.Write(r.Row())
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: encode row: %w", ErrStoreWrite, err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	metrics.UpdateStoreRecords(len(existing) + 1)
	return nil
}

// List implements Store.
func (s *CSVStore) List(ctx context.Context, limit int) ([]record.Record, error) {
	all, err := s.readShared(ctx)
	if err != nil {
		return nil, err
	}
	return tail(all, limit), nil
}

// Count implements Store.
func (s *CSVStore) Count(ctx context.Context) (int, error) {
	all, err := s.readShared(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Close implements Store. The CSV store holds no open handles.
func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) lockPath() string { return s.path + ".lock" }

func (s *CSVStore) readShared(ctx context.Context) ([]record.Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	lock, err := acquireLock(ctx, s.lockPath(), false, s.opts.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	defer func() { _ = lock.release() }()

	rs, _, _, err := s.load()
	return rs, err
}

// load parses the whole file. A missing or empty file is an empty log.
func (s *CSVStore) load() (rs []record.Record, size int64, trailingNewline bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if len(data) == 0 {
		return nil, 0, false, nil
	}

	rs, err = parseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, 0, false, err
	}
	return rs, int64(len(data)), data[len(data)-1] == '\n', nil
}

func parseCSV(in io.Reader) ([]record.Record, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = len(record.Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrStoreCorrupt, err)
	}
	if !record.HeaderMatches(header) {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrStoreCorrupt, header)
	}

	var out []record.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
		}
		r, err := record.FromRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: %w", ErrStoreCorrupt, line, err)
		}
		out = append(out, r)
	}
}
