//go:build windows

package repository

import (
	"context"
	"time"
)

// fileLock is a no-op on Windows; only the in-process mutex guards writers.
type fileLock struct{}

func acquireLock(ctx context.Context, _ string, _ bool, _ time.Duration) (*fileLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fileLock{}, nil
}

func (l *fileLock) release() error { return nil }
