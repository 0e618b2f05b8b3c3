package summarizer

import (
	"context"
	"iter"
)

// GenerateParams are the generation settings passed through to the engine.
type GenerateParams struct {
	MinLength                 int
	MaxLength                 int
	Truncation                bool // engine truncates over-long spans itself
	CleanUpTokenizationSpaces bool
	// BatchSize is the number of spans per yielded chunk; <= 0 lets the engine decide.
	BatchSize int
}

// Engine is a sequence-to-sequence summarization backend.
//
// Generate returns a lazy, finite, single-use sequence of chunks. Concatenated,
// the chunks hold exactly one summary per span in submission order. A non-nil
// error ends the sequence.
type Engine interface {
	Generate(ctx context.Context, spans []string, params GenerateParams) iter.Seq2[[]string, error]
}

// EngineFunc adapts a whole-batch function to Engine, yielding a single chunk.
type EngineFunc func(ctx context.Context, spans []string, params GenerateParams) ([]string, error)

func (f EngineFunc) Generate(ctx context.Context, spans []string, params GenerateParams) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		out, err := f(ctx, spans, params)
		yield(out, err)
	}
}
