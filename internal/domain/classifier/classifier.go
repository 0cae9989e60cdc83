package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Classifier maps text to a probability distribution over the three labels.
type Classifier interface {
	// Classify is deterministic for a fixed model and input.
	Classify(ctx context.Context, text string) (sentiment.Distribution, error)
}

// Option configures model loading.
type Option func(*options)

type options struct {
	maxSequenceLength int
}

// WithMaxSequenceLength caps the sequence length below the model's own limit.
// Values <= 0 or above the model limit are ignored.
func WithMaxSequenceLength(n int) Option {
	return func(o *options) {
		o.maxSequenceLength = n
	}
}

// Model is a loaded artifact: tokenizer, embedding table and a linear head
// over the mean-pooled embeddings. It is read-only after loading.
type Model struct {
	tokenizer  *Tokenizer
	embeddings [][]float64
	hidden     int
	weight     [sentiment.NumLabels][]float64
	bias       [sentiment.NumLabels]float64
}

// Classify tokenizes text, runs the forward pass and applies softmax.
func (m *Model) Classify(ctx context.Context, text string) (sentiment.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return sentiment.Distribution{}, err
	}
	ids, err := m.tokenizer.Encode(text)
	if err != nil {
		return sentiment.Distribution{}, err
	}
	logits := m.Logits(ids)
	for i, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return sentiment.Distribution{}, fmt.Errorf("%w: non-finite score for %s", ErrInference, sentiment.Labels[i])
		}
	}
	dist := sentiment.Softmax(logits)
	if err := dist.Validate(); err != nil {
		return sentiment.Distribution{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return dist, nil
}

// Logits returns the raw per-label scores for an encoded sequence, in
// Negative, Neutral, Positive order.
func (m *Model) Logits(ids []int) [sentiment.NumLabels]float64 {
	pooled := make([]float64, m.hidden)
	for _, id := range ids {
		row := m.embeddings[id]
		for j := range pooled {
			pooled[j] += row[j]
		}
	}
	if n := float64(len(ids)); n > 0 {
		for j := range pooled {
			pooled[j] /= n
		}
	}

	var logits [sentiment.NumLabels]float64
	for i := range logits {
		sum := m.bias[i]
		for j, w := range m.weight[i] {
			sum += w * pooled[j]
		}
		logits[i] = sum
	}
	return logits
}

// Tokenizer exposes the model's tokenizer.
func (m *Model) Tokenizer() *Tokenizer { return m.tokenizer }
