package classifier

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Artifact file names inside a model directory.
const (
	ConfigFile  = "config.json"
	VocabFile   = "vocab.txt"
	WeightsFile = "weights.json"
)

// ModelConfig mirrors config.json.
type ModelConfig struct {
	ID2Label              map[string]string `json:"id2label"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	DoLowerCase           *bool             `json:"do_lower_case,omitempty"`
	HiddenSize            int               `json:"hidden_size"`
	// Dim is the DistilBERT name for HiddenSize.
	Dim                   int               `json:"dim,omitempty"`
}

// Weights mirrors weights.json.
type Weights struct {
	Embeddings [][]float64 `json:"embeddings"`
	Classifier struct {
		Weight [][]float64 `json:"weight"`
		Bias   []float64   `json:"bias"`
	} `json:"classifier"`
}

// LoadModel reads a model directory and returns a ready Model. Every
// failure is reported as ErrModelLoad.
func LoadModel(dir string, opts ...Option) (*Model, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrModelLoad, dir)
	}

	var cfg ModelConfig
	if err := readJSON(filepath.Join(dir, ConfigFile), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if cfg.HiddenSize == 0 {
		cfg.HiddenSize = cfg.Dim
	}
	if err := checkLabelOrder(cfg.ID2Label); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	vocab, err := readVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	var w Weights
	if err := readJSON(filepath.Join(dir, WeightsFile), &w); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no %s; a checkpoint directory must be converted first: %w",
				ErrModelLoad, dir, WeightsFile, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if err := checkShapes(&cfg, &w, len(vocab)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	maxLen := cfg.MaxPositionEmbeddings
	if o.maxSequenceLength > 0 && o.maxSequenceLength < maxLen {
		maxLen = o.maxSequenceLength
	}
	lower := true
	if cfg.DoLowerCase != nil {
		lower = *cfg.DoLowerCase
	}

	tok, err := NewTokenizer(vocab, lower, maxLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	m := &Model{
		tokenizer:  tok,
		embeddings: w.Embeddings,
		hidden:     cfg.HiddenSize,
	}
	for i := 0; i < sentiment.NumLabels; i++ {
		m.weight[i] = w.Classifier.Weight[i]
		m.bias[i] = w.Classifier.Bias[i]
	}
	return m, nil
}

// checkLabelOrder insists on the fixed Negative, Neutral, Positive order.
func checkLabelOrder(id2label map[string]string) error {
	if len(id2label) != sentiment.NumLabels {
		return fmt.Errorf("id2label has %d entries, want %d", len(id2label), sentiment.NumLabels)
	}
	for _, l := range sentiment.Labels {
		got := id2label[strconv.Itoa(l.Index())]
		if got != l.String() {
			return fmt.Errorf("id2label[%d] = %q, want %q", l.Index(), got, l.String())
		}
	}
	return nil
}

func checkShapes(cfg *ModelConfig, w *Weights, vocabSize int) error {
	if cfg.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be positive, got %d", cfg.HiddenSize)
	}
	if cfg.MaxPositionEmbeddings < 3 {
		return fmt.Errorf("max_position_embeddings must be at least 3, got %d", cfg.MaxPositionEmbeddings)
	}
	if len(w.Embeddings) != vocabSize {
		return fmt.Errorf("embeddings has %d rows, vocabulary has %d tokens", len(w.Embeddings), vocabSize)
	}
	for i, row := range w.Embeddings {
		if len(row) != cfg.HiddenSize {
			return fmt.Errorf("embeddings row %d has %d columns, want %d", i, len(row), cfg.HiddenSize)
		}
	}
	if len(w.Classifier.Weight) != sentiment.NumLabels || len(w.Classifier.Bias) != sentiment.NumLabels {
		return fmt.Errorf("classifier head must have %d outputs", sentiment.NumLabels)
	}
	for i, row := range w.Classifier.Weight {
		if len(row) != cfg.HiddenSize {
			return fmt.Errorf("classifier weight row %d has %d columns, want %d", i, len(row), cfg.HiddenSize)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readVocab(path string) (Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	vocab := make(Vocab)
	sc := bufio.NewScanner(f)
	id := 0
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := vocab[tok]; dup {
			return nil, fmt.Errorf("duplicate vocabulary token %q on line %d", tok, id+1)
		}
		vocab[tok] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return vocab, nil
}
