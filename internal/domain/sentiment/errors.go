package sentiment

import "errors"

// Sentinel errors for this package.
var (
	ErrUnknownLabel        = errors.New("unknown sentiment label")
	ErrInvalidDistribution = errors.New("invalid probability distribution")
)
