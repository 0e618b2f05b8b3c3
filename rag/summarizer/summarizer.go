package summarizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/batchsum/config"
	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/pkg/diagnostics"
	"github.com/sweetpotato0/batchsum/pkg/logging"
	"github.com/sweetpotato0/batchsum/pkg/progress"
	"github.com/sweetpotato0/batchsum/pkg/telemetry"
	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Summarizer produces summaries for single document lists and batches of groups.
type Summarizer interface {
	SummarizeOne(ctx context.Context, docs []document.Document, opts ...CallOption) ([]document.Document, error)
	SummarizeMany(ctx context.Context, input Input, opts ...CallOption) (Output, error)
}

var _ Summarizer = (*BatchSummarizer)(nil)

// BatchSummarizer flattens document groups into spans, runs one batched
// inference call, and regroups the summaries into the caller's shape. Every
// result carries the span it was generated from under document.MetaContext.
//
// A BatchSummarizer may be used from several goroutines; the only state shared
// between calls is the advisory sink.
type BatchSummarizer struct {
	cfg       *Config
	engine    Engine
	tokenizer tokenizer.Tokenizer
	logger    *slog.Logger
}

// New creates a summarizer. tok may be nil, which disables the length advisory.
func New(engine Engine, tok tokenizer.Tokenizer, opts ...Option) (*BatchSummarizer, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: inference engine is required", errorskg.ErrInvalidConfiguration)
	}
	cfg := applyOptions(nil, opts)
	if cfg.diagnostics == nil {
		cfg.diagnostics = diagnostics.NewMemorySink()
	}
	logger := cfg.logger
	if logger == nil {
		logger = logging.WithComponent("summarizer")
	}
	return &BatchSummarizer{
		cfg:       cfg,
		engine:    engine,
		tokenizer: tok,
		logger:    logger,
	}, nil
}

// Config returns a copy of the summarizer settings.
func (s *BatchSummarizer) Config() Config {
	return *s.cfg
}

// SummarizeOne summarizes a flat list of documents: one summary per document, or
// a single summary of all documents joined in order when single-summary mode is
// active. The advisory for over-long spans is logged once per distinct message
// for the lifetime of the diagnostics sink.
func (s *BatchSummarizer) SummarizeOne(ctx context.Context, docs []document.Document, opts ...CallOption) (out []document.Document, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "summarizer.summarize_one")
	defer func() { telemetry.End(span, err) }()

	if err := s.validate(); err != nil {
		return nil, err
	}
	groups, _, err := FlatGroup(docs).normalize()
	if err != nil {
		return nil, err
	}
	call := s.cfg.resolve(opts)
	plan := buildSpans(groups, call.singleSummary, s.cfg.Separator)
	annotate(span, plan)

	if err := s.advise(ctx, plan.spans, advisoryOncePerMessage); err != nil {
		return nil, err
	}
	summaries, err := s.infer(ctx, plan.spans, s.params(0), progress.Nop{})
	if err != nil {
		return nil, err
	}
	regrouped, err := plan.regroup(summaries)
	if err != nil {
		return nil, err
	}
	return regrouped[0], nil
}

// SummarizeMany summarizes either a FlatGroup or a GroupList with a single
// batched inference call and returns a result of the same shape. Empty groups
// in a GroupList produce empty GroupResults.
func (s *BatchSummarizer) SummarizeMany(ctx context.Context, input Input, opts ...CallOption) (out Output, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "summarizer.summarize_many")
	defer func() { telemetry.End(span, err) }()

	if err := s.validate(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", errorskg.ErrInvalidInput)
	}
	groups, singleGroup, err := input.normalize()
	if err != nil {
		return nil, err
	}
	call := s.cfg.resolve(opts)
	plan := buildSpans(groups, call.singleSummary, s.cfg.Separator)
	annotate(span, plan)
	span.SetAttributes(attribute.Int("summarizer.batch_size", call.batchSize))

	if err := s.advise(ctx, plan.spans, advisoryOncePerCall); err != nil {
		return nil, err
	}
	summaries, err := s.infer(ctx, plan.spans, s.params(call.batchSize), s.observer())
	if err != nil {
		return nil, err
	}
	regrouped, err := plan.regroup(summaries)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "summarization completed",
		"groups", len(groups),
		"spans", len(plan.spans),
		"single_summary", call.singleSummary,
	)
	return plan.shape(regrouped, singleGroup), nil
}

func (s *BatchSummarizer) validate() error {
	if err := config.ValidateGenerationBounds(s.cfg.MinLength, s.cfg.MaxLength); err != nil {
		return fmt.Errorf("%w: %v", errorskg.ErrInvalidConfiguration, err)
	}
	return nil
}

func (s *BatchSummarizer) params(batchSize int) GenerateParams {
	return GenerateParams{
		MinLength:                 s.cfg.MinLength,
		MaxLength:                 s.cfg.MaxLength,
		Truncation:                true,
		CleanUpTokenizationSpaces: s.cfg.CleanUpTokenizationSpaces,
		BatchSize:                 batchSize,
	}
}

func (s *BatchSummarizer) observer() progress.Observer {
	if !s.cfg.ProgressBar || s.cfg.progress == nil {
		return progress.Nop{}
	}
	return s.cfg.progress()
}

// infer submits all spans at once and drains the engine's chunk sequence,
// forwarding each chunk to obs. Engine errors are returned as is.
func (s *BatchSummarizer) infer(ctx context.Context, spans []string, params GenerateParams, obs progress.Observer) (out []string, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "summarizer.infer", trace.WithAttributes(
		attribute.Int("summarizer.spans", len(spans)),
		attribute.Int("summarizer.batch_size", params.BatchSize),
	))
	defer func() { telemetry.End(span, err) }()

	obs.Start(len(spans))
	defer obs.Finish()

	out = make([]string, 0, len(spans))
	for chunk, cerr := range s.engine.Generate(ctx, spans, params) {
		if cerr != nil {
			return nil, cerr
		}
		out = append(out, chunk...)
		obs.Advance(len(chunk))
	}
	return out, nil
}

func annotate(span trace.Span, plan *spanPlan) {
	span.SetAttributes(
		attribute.Int("summarizer.groups", len(plan.counts)),
		attribute.Int("summarizer.spans", len(plan.spans)),
		attribute.Bool("summarizer.single_summary", plan.merged),
	)
}
