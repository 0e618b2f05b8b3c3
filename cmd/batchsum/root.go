package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sweetpotato0/batchsum/config"
	"github.com/sweetpotato0/batchsum/pkg/logging"
	"github.com/sweetpotato0/batchsum/pkg/telemetry"
)

// cli carries state shared by the subcommands.
type cli struct {
	cfg      config.Env
	shutdown func(ctx context.Context) error
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "batchsum",
		Short:         "Summarize batches of documents with a sequence-to-sequence model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is fine; variables already set win.
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.shutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
				ServiceName:    "batchsum",
				ServiceVersion: version,
				Endpoint:       cfg.OTLPEndpoint,
				Disable:        !cfg.Telemetry,
				Logger:         logging.WithComponent("telemetry"),
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c.shutdown == nil {
				return nil
			}
			return c.shutdown(cmd.Context())
		},
	}
	root.AddCommand(newSummarizeCmd(c), newMCPCmd(c))
	return root
}
