package repository

import "errors"

// Sentinel kinds for analysis log errors.
var (
	ErrStoreWrite    = errors.New("analysis log not writable")
	ErrStoreCorrupt  = errors.New("analysis log corrupt")
	ErrUnknownDriver = errors.New("unknown store driver")
)
