package summarizer

import (
	"log/slog"
	"os"

	"github.com/sweetpotato0/batchsum/pkg/diagnostics"
	"github.com/sweetpotato0/batchsum/pkg/progress"
)

// Config holds the immutable settings of a BatchSummarizer. Generation bounds are
// validated when a call starts, not at construction.
type Config struct {
	MaxLength                 int    // Upper bound on generated summary length (tokens)
	MinLength                 int    // Lower bound on generated summary length (tokens)
	Separator                 string // Inserted between documents joined in single-summary mode
	GenerateSingleSummary     bool   // Default mode, overridable per call
	BatchSize                 int    // Spans per engine chunk in SummarizeMany, overridable per call
	ProgressBar               bool   // Report progress while SummarizeMany runs
	CleanUpTokenizationSpaces bool   // Passed through to the inference engine

	diagnostics diagnostics.Sink         // Advisory deduplication, per instance unless shared
	progress    func() progress.Observer // Builds one observer per SummarizeMany call
	logger      *slog.Logger
}

// Option customises the summarizer configuration.
type Option func(*Config)

// WithMaxLength sets the maximum length of generated summaries.
func WithMaxLength(n int) Option {
	return func(cfg *Config) {
		cfg.MaxLength = n
	}
}

// WithMinLength sets the minimum length of generated summaries.
func WithMinLength(n int) Option {
	return func(cfg *Config) {
		cfg.MinLength = n
	}
}

// WithSeparator sets the string placed between documents when a group is joined
// into a single span. An empty separator concatenates contents directly.
func WithSeparator(sep string) Option {
	return func(cfg *Config) {
		cfg.Separator = sep
	}
}

// WithSingleSummary makes single-summary-per-group the default mode. The merged
// span follows document order, so reordering documents changes the summary.
func WithSingleSummary(enabled bool) Option {
	return func(cfg *Config) {
		cfg.GenerateSingleSummary = enabled
	}
}

// WithBatchSize sets how many spans the engine processes per chunk.
func WithBatchSize(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.BatchSize = n
		}
	}
}

// WithProgressBar toggles progress reporting.
func WithProgressBar(enabled bool) Option {
	return func(cfg *Config) {
		cfg.ProgressBar = enabled
	}
}

// WithCleanUpTokenizationSpaces toggles the engine's output cleanup.
func WithCleanUpTokenizationSpaces(enabled bool) Option {
	return func(cfg *Config) {
		cfg.CleanUpTokenizationSpaces = enabled
	}
}

// WithDiagnostics shares an advisory sink, e.g. between summarizers or processes.
func WithDiagnostics(sink diagnostics.Sink) Option {
	return func(cfg *Config) {
		if sink != nil {
			cfg.diagnostics = sink
		}
	}
}

// WithProgress replaces the default terminal bar. The factory is called once per
// SummarizeMany call while progress reporting is enabled.
func WithProgress(factory func() progress.Observer) Option {
	return func(cfg *Config) {
		if factory != nil {
			cfg.progress = factory
		}
	}
}

// WithLogger sets the logger advisories and run records are written to.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		MaxLength:                 200,
		MinLength:                 5,
		Separator:                 " ",
		GenerateSingleSummary:     false,
		BatchSize:                 16,
		ProgressBar:               true,
		CleanUpTokenizationSpaces: true,
		progress: func() progress.Observer {
			return progress.NewBar(os.Stderr, "Summarizing")
		},
	}
}

func applyOptions(cfg *Config, opts []Option) *Config {
	if cfg == nil {
		cfg = defaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// CallOption overrides instance defaults for a single call.
type CallOption func(*callConfig)

type callConfig struct {
	singleSummary bool
	batchSize     int
}

// GenerateSingleSummary overrides the configured mode for one call.
func GenerateSingleSummary(enabled bool) CallOption {
	return func(c *callConfig) {
		c.singleSummary = enabled
	}
}

// BatchSize overrides the configured engine chunk size for one SummarizeMany call.
func BatchSize(n int) CallOption {
	return func(c *callConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func (cfg *Config) resolve(opts []CallOption) callConfig {
	call := callConfig{
		singleSummary: cfg.GenerateSingleSummary,
		batchSize:     cfg.BatchSize,
	}
	for _, opt := range opts {
		opt(&call)
	}
	return call
}
