package tokenizer

import (
	"strings"
	"sync"
	"unicode"
)

// DefaultModelMaxLength matches the input window of common seq2seq summarization
// models (BART, PEGASUS).
const DefaultModelMaxLength = 1024

// Tokenizer turns text into model token ids and reports the longest sequence the
// model accepts without truncation.
type Tokenizer interface {
	Encode(text string) []int
	CountTokens(text string) int
	DecodeIds(ids []int) string
	// EncodeBatch encodes each text, preserving order.
	EncodeBatch(texts []string) ([][]int, error)
	// ModelMaxLength is the maximum sequence length of the target model.
	ModelMaxLength() int
}

var _ Tokenizer = (*SimpleTokenizer)(nil)

// SimpleTokenizer is a dependency-free tokenizer that grows its vocabulary on
// demand. It is safe for concurrent use.
type SimpleTokenizer struct {
	mu       sync.Mutex
	vocab    map[string]int // token → id
	invVocab map[int]string // id → token
	nextID   int
	maxLen   int
}

// Option customises the simple tokenizer.
type Option func(*SimpleTokenizer)

// WithModelMaxLength sets the limit reported by ModelMaxLength.
func WithModelMaxLength(n int) Option {
	return func(t *SimpleTokenizer) {
		if n > 0 {
			t.maxLen = n
		}
	}
}

// NewSimpleTokenizer creates new tokenizer with empty vocab.
func NewSimpleTokenizer(opts ...Option) *SimpleTokenizer {
	t := &SimpleTokenizer{
		vocab:    make(map[string]int),
		invVocab: make(map[int]string),
		nextID:   1, // reserve 0 for padding if needed
		maxLen:   DefaultModelMaxLength,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// addToken registers token to vocab if not exists. Caller holds mu.
func (t *SimpleTokenizer) addToken(tok string) int {
	if id, ok := t.vocab[tok]; ok {
		return id
	}
	id := t.nextID
	t.vocab[tok] = id
	t.invVocab[id] = tok
	t.nextID++
	return id
}

// Tokenization rules:
//   - letters and digits → continuous word
//   - Han characters → single rune
//   - punctuation → standalone token
func splitTokens(s string) []string {
	var toks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			toks = append(toks, buf.String())
			buf.Reset()
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()

		case unicode.Is(unicode.Han, r):
			flush()
			toks = append(toks, string(r))

		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf.WriteRune(r)

		default:
			flush()
			toks = append(toks, string(r))
		}
	}

	flush()
	return toks
}

func (t *SimpleTokenizer) Encode(text string) []int {
	toks := splitTokens(text)
	ids := make([]int, 0, len(toks))
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tok := range toks {
		ids = append(ids, t.addToken(tok))
	}
	return ids
}

func (t *SimpleTokenizer) EncodeBatch(texts []string) ([][]int, error) {
	out := make([][]int, len(texts))
	for i, text := range texts {
		out[i] = t.Encode(text)
	}
	return out, nil
}

func (t *SimpleTokenizer) CountTokens(text string) int {
	return len(splitTokens(text))
}

// DecodeIds joins known tokens with single spaces; unknown ids are dropped.
func (t *SimpleTokenizer) DecodeIds(ids []int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if tok, ok := t.invVocab[id]; ok {
			parts = append(parts, tok)
		}
	}
	return strings.Join(parts, " ")
}

func (t *SimpleTokenizer) ModelMaxLength() int {
	return t.maxLen
}
