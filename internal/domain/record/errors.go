package record

import "errors"

// ErrMalformedRow is returned when a stored row does not follow the column contract.
var ErrMalformedRow = errors.New("malformed analysis row")
