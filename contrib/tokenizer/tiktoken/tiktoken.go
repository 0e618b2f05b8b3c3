package tiktoken

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
)

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Context windows per encoding, used when no explicit limit is configured.
var encodingMaxLength = map[string]int{
	tiktoken.MODEL_O200K_BASE:  128000,
	tiktoken.MODEL_CL100K_BASE: 8192,
	tiktoken.MODEL_P50K_BASE:   4096,
	tiktoken.MODEL_R50K_BASE:   2048,
}

type Tokenizer struct {
	enc    *tiktoken.Tiktoken
	name   string
	maxLen int
}

// Option customises the tiktoken tokenizer.
type Option func(*Tokenizer)

// WithModelMaxLength overrides the limit derived from the encoding.
func WithModelMaxLength(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.maxLen = n
		}
	}
}

// NewTiktokenTokenizer resolves name as a model first and as an encoding second.
func NewTiktokenTokenizer(name string, opts ...Option) (*Tokenizer, error) {
	encName := name
	enc, err := tiktoken.EncodingForModel(name)
	if err == nil {
		encName = encodingForModel(name)
	} else {
		// try by name
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, fmt.Errorf("tiktoken: resolve %q: %w", name, err)
		}
	}
	t := &Tokenizer{enc: enc, name: encName, maxLen: encodingMaxLength[encName]}
	if t.maxLen == 0 {
		t.maxLen = tokenizer.DefaultModelMaxLength
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func encodingForModel(model string) string {
	if enc, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return enc
	}
	for prefix, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return enc
		}
	}
	return model
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tokenizer) EncodeBatch(texts []string) ([][]int, error) {
	out := make([][]int, len(texts))
	for i, text := range texts {
		out[i] = t.Encode(text)
	}
	return out, nil
}

func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

func (t *Tokenizer) DecodeIds(ids []int) string {
	return t.enc.Decode(ids)
}

func (t *Tokenizer) ModelMaxLength() int {
	return t.maxLen
}

// Encoding reports the resolved BPE encoding name.
func (t *Tokenizer) Encoding() string {
	return t.name
}
