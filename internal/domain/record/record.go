// Package record contains the analysis record passed from the pipeline to
// the analysis log, and its tabular column contract.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Columns is the analysis log header. Names and order are a compatibility
// contract with downstream reporting.
var Columns = []string{
	"Timestamp",
	"Product",
	"Rating",
	"Review",
	"Predicted_Sentiment",
	"Negative_Prob",
	"Neutral_Prob",
	"Positive_Prob",
}

// TimestampLayout is how timestamps are written to the log.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Record is one persisted analysis outcome. Values are created once and
// passed by copy.
type Record struct {
	Timestamp   time.Time              `json:"timestamp"`
	Product     string                 `json:"product"`
	Rating      int                    `json:"rating"`
	Review      string                 `json:"review"`
	Sentiment   sentiment.Label        `json:"sentiment"`
	Confidences sentiment.Distribution `json:"confidences"`
	Mismatch    bool                   `json:"mismatch"`
}

// Input is what a caller supplies for one analysis.
type Input struct {
	Product string `json:"product"`
	Rating  int    `json:"rating"`
	Review  string `json:"review"`
}

// Row renders r in Columns order.
func (r Record) Row() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		r.Product,
		strconv.Itoa(r.Rating),
		r.Review,
		r.Sentiment.String(),
		formatProb(r.Confidences[sentiment.Negative]),
		formatProb(r.Confidences[sentiment.Neutral]),
		formatProb(r.Confidences[sentiment.Positive]),
	}
}

// FromRow parses a row written by Row. The mismatch flag is not stored, so
// it is recomputed from rating and label.
func FromRow(row []string) (Record, error) {
	if len(row) != len(Columns) {
		return Record{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRow, len(Columns), len(row))
	}

	ts, err := ParseTimestamp(row[0])
	if err != nil {
		return Record{}, err
	}
	rating, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return Record{}, fmt.Errorf("%w: rating %q", ErrMalformedRow, row[2])
	}
	label, err := sentiment.ParseLabel(row[4])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	var dist sentiment.Distribution
	for i := range dist {
		p, err := strconv.ParseFloat(strings.TrimSpace(row[5+i]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s %q", ErrMalformedRow, Columns[5+i], row[5+i])
		}
		dist[i] = p
	}

	// Historical rows may carry ratings the checker rejects; keep them readable.
	mismatch, _ := consistency.IsMismatched(rating, label)

	return Record{
		Timestamp:   ts,
		Product:     row[1],
		Rating:      rating,
		Review:      row[3],
		Sentiment:   label,
		Confidences: dist,
		Mismatch:    mismatch,
	}, nil
}

// NormalizeNewlines folds CRLF line breaks to LF. CSV readers fold CRLF
// inside quoted fields, so text is stored folded to read back unchanged.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// ParseTimestamp accepts TimestampLayout (with any fractional precision) and RFC3339.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", s, time.Local); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedRow, s)
}

// HeaderMatches reports whether header equals Columns exactly.
func HeaderMatches(header []string) bool {
	if len(header) != len(Columns) {
		return false
	}
	for i, c := range Columns {
		if header[i] != c {
			return false
		}
	}
	return true
}

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// Analysis is the outcome of one pipeline run. Persisted is false when the
// record could not be appended to the analysis log.
type Analysis struct {
	ID        string `json:"id"`
	Record    Record `json:"record"`
	Persisted bool   `json:"persisted"`
}
