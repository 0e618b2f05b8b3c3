// Package lead is an offline extractive summarizer: the summary of a span is
// its leading sentences, cut to the requested length in words.
package lead

import (
	"context"
	"strings"
	"unicode"

	"github.com/sweetpotato0/batchsum/contrib/engine"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// Generator picks leading sentences until MinLength words are covered, never
// exceeding MaxLength words.
type Generator struct{}

var _ engine.Generator = Generator{}

// NewEngine returns a batched lead-sentences engine.
func NewEngine(opts ...engine.Option) *engine.Engine {
	return engine.New(Generator{}, opts...)
}

func (Generator) Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var picked []string
	words := 0
	for _, sentence := range Sentences(span) {
		n := len(strings.Fields(sentence))
		if params.MaxLength > 0 && words+n > params.MaxLength {
			if words == 0 {
				// Sentence longer than the limit: keep its first MaxLength words.
				picked = append(picked, strings.Join(strings.Fields(sentence)[:params.MaxLength], " "))
			}
			break
		}
		picked = append(picked, sentence)
		words += n
		if words >= params.MinLength && params.MinLength > 0 {
			break
		}
	}
	return strings.Join(picked, " "), nil
}

// Sentences splits text after '.', '!' or '?' followed by whitespace.
func Sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
