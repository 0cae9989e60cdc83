package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/reviewlens/internal/domain/sentiment"
	"github.com/okian/reviewlens/pkg/logger"
	"github.com/okian/reviewlens/pkg/metrics"
)

// Loader produces a classifier. It is called at most once by Lazy.
type Loader func(ctx context.Context) (Classifier, error)

// Lazy defers loading until first use and then reuses the loaded instance.
// A failed load is remembered and returned to every later caller.
type Lazy struct {
	load   Loader
	once   sync.Once
	clf    Classifier
	err    error
	logger logger.Logger
}

// NewLazy wraps load. log may be nil.
func NewLazy(load Loader, log logger.Logger) *Lazy {
	return &Lazy{load: load, logger: log}
}

// NewLazyFromDir lazily loads the artifact in dir.
func NewLazyFromDir(dir string, log logger.Logger, opts ...Option) *Lazy {
	return NewLazy(func(context.Context) (Classifier, error) {
		return LoadModel(dir, opts...)
	}, log)
}

// Warm loads the classifier if it has not been loaded yet.
func (l *Lazy) Warm(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

// Classify loads on first use and delegates.
func (l *Lazy) Classify(ctx context.Context, text string) (sentiment.Distribution, error) {
	clf, err := l.get(ctx)
	if err != nil {
		return sentiment.Distribution{}, err
	}
	return clf.Classify(ctx, text)
}

func (l *Lazy) get(ctx context.Context) (Classifier, error) {
	l.once.Do(func() {
		start := time.Now()
		l.clf, l.err = l.load(ctx)
		switch {
		case l.err != nil && !errors.Is(l.err, ErrModelLoad):
			l.err = fmt.Errorf("%w: %w", ErrModelLoad, l.err)
		case l.err == nil && l.clf == nil:
			l.err = fmt.Errorf("%w: loader returned no classifier", ErrModelLoad)
		}
		elapsed := time.Since(start)
		metrics.SetModelLoadSeconds(elapsed.Seconds())
		if l.logger == nil {
			return
		}
		if l.err != nil {
			l.logger.Error(ctx, "model load failed", logger.Error(l.err))
			return
		}
		l.logger.Info(ctx, "model loaded", logger.Duration("elapsed", elapsed))
	})
	return l.clf, l.err
}
