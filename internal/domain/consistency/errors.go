package consistency

import "errors"

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("invalid rating")
