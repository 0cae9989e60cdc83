// Package consistency flags reviews whose star rating disagrees with the
// predicted sentiment. The rule is a coarse early-warning heuristic.
package consistency

import (
	"fmt"

	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidateRating returns ErrInvalidRating unless rating is within [MinRating, MaxRating].
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidRating, rating, MinRating, MaxRating)
	}
	return nil
}

// IsMismatched reports whether a high rating came with a Negative review or a
// low rating came with a Positive one. Rating 3 and Neutral never mismatch.
func IsMismatched(rating int, label sentiment.Label) (bool, error) {
	if err := ValidateRating(rating); err != nil {
		return false, err
	}
	switch {
	case rating >= 4 && label == sentiment.Negative:
		return true, nil
	case rating <= 2 && label == sentiment.Positive:
		return true, nil
	default:
		return false, nil
	}
}
