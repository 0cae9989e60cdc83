package classifier

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Special tokens every vocabulary must contain.
const (
	TokenPad     = "[PAD]"
	TokenUnknown = "[UNK]"
	TokenCLS     = "[CLS]"
	TokenSEP     = "[SEP]"

	continuationPrefix = "##"
	maxRunesPerWord    = 100
)

// Vocab maps WordPiece tokens to ids.
type Vocab map[string]int

// Tokenizer is a BERT-style basic tokenizer followed by greedy WordPiece.
type Tokenizer struct {
	vocab     Vocab
	lowercase bool
	maxLen    int

	unkID, clsID, sepID int
}

// NewTokenizer builds a tokenizer over vocab. maxLen counts the [CLS] and
// [SEP] tokens.
func NewTokenizer(vocab Vocab, lowercase bool, maxLen int) (*Tokenizer, error) {
	t := &Tokenizer{vocab: vocab, lowercase: lowercase, maxLen: maxLen}
	for tok, dst := range map[string]*int{TokenUnknown: &t.unkID, TokenCLS: &t.clsID, TokenSEP: &t.sepID} {
		id, ok := vocab[tok]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing %s", tok)
		}
		*dst = id
	}
	if _, ok := vocab[TokenPad]; !ok {
		return nil, fmt.Errorf("vocabulary is missing %s", TokenPad)
	}
	if maxLen < 3 {
		return nil, fmt.Errorf("max sequence length %d leaves no room for text", maxLen)
	}
	return t, nil
}

// MaxLen returns the sequence length cap, special tokens included.
func (t *Tokenizer) MaxLen() int { return t.maxLen }

// Encode returns [CLS] ids... [SEP], truncated to MaxLen. Pieces past the
// limit are dropped.
func (t *Tokenizer) Encode(text string) ([]int, error) {
	pieces, err := t.Tokenize(text)
	if err != nil {
		return nil, err
	}

	budget := t.maxLen - 2
	if len(pieces) > budget {
		pieces = pieces[:budget]
	}

	ids := make([]int, 0, len(pieces)+2)
	ids = append(ids, t.clsID)
	for _, p := range pieces {
		ids = append(ids, t.vocab[p])
	}
	ids = append(ids, t.sepID)
	return ids, nil
}

// Tokenize splits text into WordPiece tokens without special tokens or truncation.
func (t *Tokenizer) Tokenize(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrTokenization)
	}

	cleaned, err := t.normalize(text)
	if err != nil {
		return nil, err
	}

	var pieces []string
	for _, word := range splitWords(cleaned) {
		pieces = append(pieces, t.wordPiece(word)...)
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: no tokens in input", ErrTokenization)
	}
	return pieces, nil
}

func (t *Tokenizer) normalize(text string) (string, error) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r), unicode.In(r, unicode.Cf, unicode.Co, unicode.Cs):
			continue
		case isCJK(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if !t.lowercase {
		return out, nil
	}

	out = strings.ToLower(out)
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripAccents, out)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenization, err)
	}
	return stripped, nil
}

// splitWords splits on whitespace and isolates every punctuation rune.
func splitWords(text string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// isCJK reports whether r is in a CJK Unified Ideographs block. Each such
// rune is a word of its own. Hangul and kana are not in these blocks.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// wordPiece splits one word by greedy longest-match-first.
func (t *Tokenizer) wordPiece(word string) []string {
	chars := []rune(word)
	if len(chars) > maxRunesPerWord {
		return []string{TokenUnknown}
	}

	var out []string
	for start := 0; start < len(chars); {
		end := len(chars)
		match := ""
		for start < end {
			sub := string(chars[start:end])
			if start > 0 {
				sub = continuationPrefix + sub
			}
			if _, ok := t.vocab[sub]; ok {
				match = sub
				break
			}
			end--
		}
		if match == "" {
			return []string{TokenUnknown}
		}
		out = append(out, match)
		start = end
	}
	return out
}
