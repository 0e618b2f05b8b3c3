package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sweetpotato0/batchsum/config"
	"github.com/sweetpotato0/batchsum/contrib/engine"
	"github.com/sweetpotato0/batchsum/contrib/engine/claude"
	"github.com/sweetpotato0/batchsum/contrib/engine/gemini"
	"github.com/sweetpotato0/batchsum/contrib/engine/lead"
	"github.com/sweetpotato0/batchsum/contrib/engine/openai"
	"github.com/sweetpotato0/batchsum/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/batchsum/pkg/diagnostics"
	"github.com/sweetpotato0/batchsum/pkg/logging"
	"github.com/sweetpotato0/batchsum/pkg/progress"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
	"github.com/sweetpotato0/batchsum/store"
)

// app holds the components built from configuration for one command run.
type app struct {
	summarizer *summarizer.BatchSummarizer
	store      store.ResultStore
	closers    []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg config.Env, progressMode string) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	tok, err := buildTokenizer(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := buildDiagnostics(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	eng, err := buildEngine(ctx, cfg, tok, a)
	if err != nil {
		return nil, err
	}
	if a.store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.store != nil {
		a.closers = append(a.closers, a.store.Close)
	}

	logger := logging.WithComponent("summarizer")
	opts := []summarizer.Option{
		summarizer.WithMaxLength(cfg.MaxLength),
		summarizer.WithMinLength(cfg.MinLength),
		summarizer.WithSeparator(cfg.Separator),
		summarizer.WithSingleSummary(cfg.SingleSummary),
		summarizer.WithBatchSize(cfg.BatchSize),
		summarizer.WithCleanUpTokenizationSpaces(cfg.CleanUpTokenizationSpaces),
		summarizer.WithDiagnostics(sink),
		summarizer.WithLogger(logger),
	}
	opts = append(opts, progressOptions(progressMode, cfg.ProgressBar, logger)...)

	a.summarizer, err = summarizer.New(eng, tok, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func progressOptions(mode string, enabled bool, logger *slog.Logger) []summarizer.Option {
	switch mode {
	case "none":
		return []summarizer.Option{summarizer.WithProgressBar(false)}
	case "log":
		return []summarizer.Option{
			summarizer.WithProgressBar(true),
			summarizer.WithProgress(func() progress.Observer { return progress.NewLog(logger) }),
		}
	default:
		return []summarizer.Option{
			summarizer.WithProgressBar(enabled),
			summarizer.WithProgress(func() progress.Observer { return progress.NewBar(os.Stderr, "Summarizing") }),
		}
	}
}

func buildTokenizer(cfg config.Env) (tokenizer.Tokenizer, error) {
	switch cfg.Tokenizer {
	case "", "simple":
		return tokenizer.NewSimpleTokenizer(tokenizer.WithModelMaxLength(cfg.ModelMaxLength)), nil
	case "none":
		return nil, nil
	default:
		return tiktoken.NewTiktokenTokenizer(cfg.Tokenizer, tiktoken.WithModelMaxLength(cfg.ModelMaxLength))
	}
}

func buildDiagnostics(ctx context.Context, cfg config.Env, a *app) (diagnostics.Sink, error) {
	if cfg.Diagnostics != "redis" {
		return diagnostics.NewMemorySink(), nil
	}
	sink := diagnostics.NewRedisSink(&diagnostics.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		TTL:      cfg.Redis.TTL,
	})
	a.closers = append(a.closers, sink.Close)
	if err := sink.Ping(ctx); err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	return sink, nil
}

func buildEngine(ctx context.Context, cfg config.Env, tok tokenizer.Tokenizer, a *app) (summarizer.Engine, error) {
	e := cfg.Engine
	opts := []engine.Option{
		engine.WithConcurrency(e.Concurrency),
		engine.WithRateLimit(e.RPS, e.Burst),
	}
	if tok != nil {
		opts = append(opts, engine.WithTokenizer(tok))
	}

	switch e.Provider {
	case "", "lead":
		return lead.NewEngine(opts...), nil
	case "openai":
		oc := openai.DefaultConfig().WithAPIKey(e.APIKey()).WithBaseURL(e.BaseURL).WithModel(e.DefaultModel())
		return openai.NewEngine(oc, opts...), nil
	case "claude":
		cc := claude.DefaultConfig(e.APIKey(), e.BaseURL)
		cc.Model = e.DefaultModel()
		return claude.NewEngine(cc, opts...), nil
	case "gemini":
		gc := gemini.DefaultConfig(e.APIKey())
		gc.Model = e.DefaultModel()
		p, err := gemini.New(ctx, gc)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return engine.New(p, opts...), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", e.Provider)
	}
}

func buildStore(ctx context.Context, cfg config.Env) (store.ResultStore, error) {
	switch cfg.Store {
	case "", "none":
		return nil, nil
	case "memory":
		return store.NewInMemoryStore(), nil
	case "postgres":
		return store.NewPostgresStore(ctx, &store.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	case "mongo":
		return store.NewMongoStore(ctx, &store.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
