// Package engine drives single-span generators as batched summarization
// engines. Provider adapters live in the sub-packages.
package engine

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sweetpotato0/batchsum/rag/summarizer"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
)

// DefaultConcurrency bounds in-flight generator calls per chunk.
const DefaultConcurrency = 4

// Generator summarizes one span.
type Generator interface {
	Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, span string, params summarizer.GenerateParams) (string, error)

func (f GeneratorFunc) Summarize(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
	return f(ctx, span, params)
}

// Engine implements summarizer.Engine on top of a Generator.
type Engine struct {
	gen         Generator
	concurrency int
	tokenizer   tokenizer.Tokenizer
	limiter     *rate.Limiter
}

var _ summarizer.Engine = (*Engine)(nil)

// Option customises an Engine.
type Option func(*Engine)

// WithConcurrency sets how many spans of a chunk are generated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTokenizer enables input truncation to the tokenizer's model length when
// the request asks for it.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(e *Engine) {
		e.tokenizer = tok
	}
}

// WithRateLimit caps generator calls at rps per second with the given burst.
// Hosted providers reject bursts above their account limits.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Engine) {
		if rps <= 0 {
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// New wraps gen as a batched engine.
func New(gen Generator, opts ...Option) *Engine {
	e := &Engine{gen: gen, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Generate(ctx context.Context, spans []string, params summarizer.GenerateParams) iter.Seq2[[]string, error] {
	gen := e.gen
	if params.Truncation && e.tokenizer != nil {
		gen = truncating(gen, e.tokenizer)
	}
	if e.limiter != nil {
		gen = limited(gen, e.limiter)
	}
	return Run(ctx, spans, params, gen, e.concurrency)
}

// Run splits spans into chunks of params.BatchSize, generates every span of a
// chunk with at most concurrency calls in flight and yields the chunk in
// submission order. The first failing span ends the sequence with its error.
func Run(ctx context.Context, spans []string, params summarizer.GenerateParams, gen Generator, concurrency int) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		if gen == nil {
			yield(nil, fmt.Errorf("engine: generator is nil"))
			return
		}
		size := params.BatchSize
		if size <= 0 {
			size = len(spans)
		}
		for start := 0; start < len(spans); start += size {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			end := min(start+size, len(spans))
			chunk, err := generateChunk(ctx, spans[start:end], params, gen, concurrency)
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

func generateChunk(ctx context.Context, spans []string, params summarizer.GenerateParams, gen Generator, concurrency int) ([]string, error) {
	out := make([]string, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, span := range spans {
		g.Go(func() error {
			summary, err := gen.Summarize(gctx, span, params)
			if err != nil {
				return err
			}
			if params.CleanUpTokenizationSpaces {
				summary = CleanUpTokenization(summary)
			}
			out[i] = strings.TrimSpace(summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func truncating(gen Generator, tok tokenizer.Tokenizer) Generator {
	limit := tok.ModelMaxLength()
	return GeneratorFunc(func(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
		if ids := tok.Encode(span); limit > 0 && len(ids) > limit {
			span = tok.DecodeIds(ids[:limit])
		}
		return gen.Summarize(ctx, span, params)
	})
}

func limited(gen Generator, l *rate.Limiter) Generator {
	return GeneratorFunc(func(ctx context.Context, span string, params summarizer.GenerateParams) (string, error) {
		if err := l.Wait(ctx); err != nil {
			return "", err
		}
		return gen.Summarize(ctx, span, params)
	})
}

var tokenizationSpaces = strings.NewReplacer(
	" .", ".",
	" ?", "?",
	" !", "!",
	" ,", ",",
	" ' ", "'",
	" n't", "n't",
	" 'm", "'m",
	" 's", "'s",
	" 've", "'ve",
	" 're", "'re",
)

// CleanUpTokenization removes the spaces detokenizers leave before punctuation
// and English contractions.
func CleanUpTokenization(s string) string {
	return tokenizationSpaces.Replace(s)
}

// Prompt is the instruction given to chat models for one span.
func Prompt(params summarizer.GenerateParams) string {
	var b strings.Builder
	b.WriteString("Summarize the text provided by the user. Respond with the summary only, ")
	b.WriteString("in the language of the text, without preamble or bullet points.")
	if params.MaxLength > 0 {
		fmt.Fprintf(&b, " Use at least %d and at most %d tokens.", params.MinLength, params.MaxLength)
	}
	return b.String()
}
