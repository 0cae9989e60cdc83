package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/pkg/logger"
)

var (
	products = []string{"Phone", "Laptop", "Headphones", "Charger", "Kettle", "Backpack"}

	openers = map[int][]string{
		1: {"terrible", "awful", "broken on arrival", "the worst purchase"},
		2: {"bad", "disappointing", "not worth it"},
		3: {"ok", "average", "decent enough"},
		4: {"good", "works well", "nice"},
		5: {"great", "excellent", "amazing", "love it"},
	}
	subjects = []string{"battery", "build quality", "screen", "delivery", "price", "sound"}
)

// pick returns a uniformly random element of xs.
func pick[T any](xs []T) T {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(xs))))
	return xs[n.Int64()]
}

func randomRating() int {
	n, _ := rand.Int(rand.Reader, big.NewInt(consistency.MaxRating-consistency.MinRating+1))
	return int(n.Int64()) + consistency.MinRating
}

// Generate builds n reviews. Roughly one in five carries the text of a
// different rating so that mismatches show up in the log.
func Generate(ctx context.Context, n int) ([]Review, error) {
	if n < 0 {
		return nil, fmt.Errorf("review count must be non-negative, got %d", n)
	}
	logger.Get().Info(ctx, "generating reviews", logger.Int("count", n))

	reviews := make([]Review, n)
	for i := range reviews {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("review generation cancelled: %w", err)
		}
		rating := randomRating()
		tone := rating
		if flip, _ := rand.Int(rand.Reader, big.NewInt(5)); flip.Int64() == 0 {
			tone = consistency.MaxRating + consistency.MinRating - rating
		}
		reviews[i] = Review{
			Product: pick(products) + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0],
			Rating:  rating,
			Review:  pick(openers[tone]) + " " + pick(subjects),
		}
	}
	return reviews, nil
}
