// Package classifiertest writes small model artifacts and provides fakes for
// tests of packages that depend on a classifier.
package classifiertest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Word groups of the fixture vocabulary. Each group's embedding points at
// one label.
var (
	NegativeWords = []string{"terrible", "awful", "broken", "bad", "worst", "refund"}
	NeutralWords  = []string{"ok", "okay", "average", "fine", "decent"}
	PositiveWords = []string{"great", "love", "excellent", "good", "amazing", "perfect"}
	OtherWords    = []string{"the", "product", "is", "it", "phone", "battery", "##s", ".", "!", ","}
)

// MaxPositionEmbeddings is the fixture model's sequence limit.
const MaxPositionEmbeddings = 16

// WriteModel writes a complete artifact under t.TempDir and returns its path.
func WriteModel(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "model")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir model dir: %v", err)
	}

	vocab := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"}
	embeddings := [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	add := func(words []string, vec []float64) {
		for _, w := range words {
			vocab = append(vocab, w)
			embeddings = append(embeddings, vec)
		}
	}
	add(NegativeWords, []float64{1, 0, 0})
	add(NeutralWords, []float64{0, 1, 0})
	add(PositiveWords, []float64{0, 0, 1})
	add(OtherWords, []float64{0, 0, 0})

	config := map[string]any{
		"id2label":                map[string]string{"0": "Negative", "1": "Neutral", "2": "Positive"},
		"max_position_embeddings": MaxPositionEmbeddings,
		"do_lower_case":           true,
		"hidden_size":             3,
	}
	weights := map[string]any{
		"embeddings": embeddings,
		"classifier": map[string]any{
			"weight": [][]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}},
			"bias":   []float64{0, 0, 0},
		},
	}

	writeJSON(t, filepath.Join(dir, "config.json"), config)
	writeJSON(t, filepath.Join(dir, "weights.json"), weights)
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(strings.Join(vocab, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	return dir
}

// RewriteFile replaces one file of an artifact written by WriteModel.
func RewriteFile(t testing.TB, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("rewrite %s: %v", name, err)
	}
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Fake is a scripted classifier that records the texts it was asked about.
type Fake struct {
	mu    sync.Mutex
	Dist  sentiment.Distribution
	Err   error
	calls []string
}

// NewFake returns a Fake answering dist for every input.
func NewFake(dist sentiment.Distribution) *Fake {
	return &Fake{Dist: dist}
}

// Classify implements classifier.Classifier.
func (f *Fake) Classify(_ context.Context, text string) (sentiment.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.Err != nil {
		return sentiment.Distribution{}, f.Err
	}
	return f.Dist, nil
}

// Calls returns the texts classified so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
