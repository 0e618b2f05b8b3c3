package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/sweetpotato0/batchsum/mcp"
	"github.com/sweetpotato0/batchsum/pkg/logging"
)

func newMCPCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the summarize_documents tool over MCP",
		Long:  "Serve the summarize_documents tool over stdio, or over streamable HTTP when --http is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			// stdout carries the protocol; progress bars would corrupt it.
			a, err := buildApp(ctx, c.cfg, "log")
			if err != nil {
				return err
			}
			defer a.Close()

			logger := logging.WithComponent("mcp")
			opts := []mcp.Option{mcp.WithLogger(logger), mcp.WithVersion(version)}
			if a.store != nil {
				opts = append(opts, mcp.WithStore(a.store))
			}
			srv := mcp.NewServer(a.summarizer, opts...)

			if addr == "" {
				return srv.Run(ctx, &sdkmcp.StdioTransport{})
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.HTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()
			logger.InfoContext(ctx, "serving MCP streamable endpoint", "addr", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
