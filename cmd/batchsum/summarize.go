package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sweetpotato0/batchsum/config"
	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/preprocess"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

type summarizeOptions struct {
	singleSummary bool
	batchSize     int
	maxLength     int
	minLength     int
	separator     string
	engine        string
	model         string
	store         string
	runID         string
	progress      string
	indent        bool
}

type summarizeOutput struct {
	RunID     string            `json:"run_id,omitempty"`
	Summaries summarizer.Output `json:"summaries"`
}

func newSummarizeCmd(c *cli) *cobra.Command {
	opts := &summarizeOptions{}
	cmd := &cobra.Command{
		Use:   "summarize PATH...",
		Short: "Summarize text, markdown and HTML files",
		Long: `Summarize documents loaded from files and directories.

Each directory argument is one group of documents. File arguments together form
one more group. With files only, the result is a flat list of summaries; with
directories, one result per group in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			opts.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			input, err := loadInput(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, opts.progress)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.summarizer.SummarizeMany(ctx, input)
			if err != nil {
				return err
			}

			result := summarizeOutput{Summaries: out}
			if a.store != nil {
				result.RunID = opts.runID
				if result.RunID == "" {
					result.RunID = uuid.NewString()
				}
				if err := a.store.Save(ctx, result.RunID, out); err != nil {
					return fmt.Errorf("save run %s: %w", result.RunID, err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if opts.indent {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(result)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.singleSummary, "single-summary", false, "produce one summary per group")
	f.IntVar(&opts.batchSize, "batch-size", 0, "spans per inference chunk")
	f.IntVar(&opts.maxLength, "max-length", 0, "maximum summary length in tokens")
	f.IntVar(&opts.minLength, "min-length", 0, "minimum summary length in tokens")
	f.StringVar(&opts.separator, "separator", "", "separator between documents joined into one span")
	f.StringVar(&opts.engine, "engine", "", "inference engine: lead, openai, claude or gemini")
	f.StringVar(&opts.model, "model", "", "model name for the selected engine")
	f.StringVar(&opts.store, "store", "", "save results to: none, memory, postgres or mongo")
	f.StringVar(&opts.runID, "run-id", "", "run id used when saving results (default: random)")
	f.StringVar(&opts.progress, "progress", "bar", "progress reporting: bar, log or none")
	f.BoolVar(&opts.indent, "indent", false, "indent JSON output")
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (o *summarizeOptions) apply(cmd *cobra.Command, cfg *config.Env) {
	f := cmd.Flags()
	if f.Changed("single-summary") {
		cfg.SingleSummary = o.singleSummary
	}
	if f.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if f.Changed("max-length") {
		cfg.MaxLength = o.maxLength
	}
	if f.Changed("min-length") {
		cfg.MinLength = o.minLength
	}
	if f.Changed("separator") {
		cfg.Separator = o.separator
	}
	if f.Changed("engine") {
		cfg.Engine.Provider = o.engine
	}
	if f.Changed("model") {
		cfg.Engine.Model = o.model
	}
	if f.Changed("store") {
		cfg.Store = o.store
	}
}

// loadInput reads every path. Directories become groups; files are collected
// into one group placed where the first file appeared.
func loadInput(paths []string) (summarizer.Input, error) {
	var (
		groups  summarizer.GroupList
		files   []document.Document
		filesAt = -1
		dirs    int
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			docs, err := preprocess.LoadDir(p)
			if err != nil {
				return nil, err
			}
			groups = append(groups, docs)
			dirs++
			continue
		}
		doc, err := preprocess.LoadFile(p)
		if err != nil {
			return nil, err
		}
		if filesAt < 0 {
			filesAt = len(groups)
			groups = append(groups, nil)
		}
		files = append(files, doc)
	}
	if dirs == 0 {
		return summarizer.FlatGroup(files), nil
	}
	if filesAt >= 0 {
		groups[filesAt] = files
	}
	return groups, nil
}
