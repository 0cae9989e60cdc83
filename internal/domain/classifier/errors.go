package classifier

import "errors"

// Sentinel errors for this package.
var (
	// ErrModelLoad means the artifact is missing or unusable. No inference
	// is possible after it.
	ErrModelLoad = errors.New("model load failed")
	// ErrTokenization means the input could not be turned into tokens.
	ErrTokenization = errors.New("tokenization failed")
	// ErrInference means the forward pass produced unusable scores.
	ErrInference = errors.New("inference failed")
)
