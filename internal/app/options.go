package service

import (
	"time"

	"github.com/okian/reviewlens/internal/adapters/repository"
	"github.com/okian/reviewlens/internal/domain/classifier"
	"github.com/okian/reviewlens/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClassifier sets the sentiment classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithStore sets the analysis log.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithQueueSize sets how many submitted analyses may wait for the worker.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
