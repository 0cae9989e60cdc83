// Package sentiment holds the fixed three-way label set and the probability
// distribution a classifier produces over it.
package sentiment

import (
	"encoding/json"
	"fmt"
	"math"
)

// Label is a predicted review polarity.
type Label int

// The numeric values are the model's output indices and must not change.
const (
	Negative Label = 0
	Neutral  Label = 1
	Positive Label = 2
)

// NumLabels is the size of the label set.
const NumLabels = 3

// Tolerance bounds the allowed drift of a distribution's sum from 1.
const Tolerance = 1e-6

// Labels lists every label in model output order.
var Labels = [NumLabels]Label{Negative, Neutral, Positive}

var labelNames = [NumLabels]string{"Negative", "Neutral", "Positive"}

// String returns the label name used in logs, APIs and the analysis log.
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	return l >= Negative && l <= Positive
}

// Index returns the model output position of l.
func (l Label) Index() int { return int(l) }

// LabelAt maps a model output index to its label.
func LabelAt(index int) (Label, error) {
	if index < 0 || index >= NumLabels {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownLabel, index)
	}
	return Labels[index], nil
}

// ParseLabel converts a label name back into a Label. Matching is exact.
func ParseLabel(name string) (Label, error) {
	for i, n := range labelNames {
		if n == name {
			return Labels[i], nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLabel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Distribution is a probability per label, indexed by Label.
type Distribution [NumLabels]float64

// Prob returns the probability assigned to l.
func (d Distribution) Prob(l Label) float64 {
	if !l.Valid() {
		return 0
	}
	return d[l]
}

// MarshalJSON writes the distribution as an object keyed by label name.
func (d Distribution) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumLabels)
	for i, p := range d {
		m[labelNames[i]] = p
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the object form written by MarshalJSON.
func (d *Distribution) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Distribution
	for name, p := range m {
		l, err := ParseLabel(name)
		if err != nil {
			return err
		}
		out[l] = p
	}
	*d = out
	return nil
}

// Validate checks that every value is in [0,1] and that they sum to 1.
func (d Distribution) Validate() error {
	sum := 0.0
	for i, p := range d {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidDistribution, labelNames[i], p)
		}
		sum += p
	}
	if math.Abs(sum-1) > Tolerance {
		return fmt.Errorf("%w: sum=%v", ErrInvalidDistribution, sum)
	}
	return nil
}

// Argmax returns the most probable label. Ties go to the lowest index.
func Argmax(d Distribution) Label {
	best := 0
	for i := 1; i < NumLabels; i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return Labels[best]
}

// Softmax turns raw per-label scores into a Distribution.
func Softmax(logits [NumLabels]float64) Distribution {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	var out Distribution
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
