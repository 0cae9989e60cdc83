package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrEmptyReview  = errors.New("review text is empty")
	ErrNoClassifier = errors.New("no classifier configured")
	ErrNoStore      = errors.New("no analysis log configured")
)
