package repository

import (
	"time"

	"github.com/okian/reviewlens/pkg/logger"
)

const defaultLockTimeout = 5 * time.Second

type storeOptions struct {
	lockTimeout time.Duration
	logger      logger.Logger
}

// Option configures a store.
type Option func(*storeOptions)

// WithLockTimeout bounds how long Append waits for the cross-process lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *storeOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
