// Package mcp exposes the summarizer as a Model Context Protocol tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sweetpotato0/batchsum/pkg/logging"
	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
	"github.com/sweetpotato0/batchsum/store"
)

// ToolName is the name of the summarization tool.
const ToolName = "summarize_documents"

// Option configures the MCP server.
type Option func(*Server)

// WithStore saves every tool result under a fresh run id.
func WithStore(s store.ResultStore) Option {
	return func(srv *Server) {
		srv.store = s
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.logger = l
		}
	}
}

// WithVersion sets the version advertised to clients.
func WithVersion(v string) Option {
	return func(srv *Server) {
		srv.version = v
	}
}

// Server serves the summarize_documents tool.
type Server struct {
	summarizer summarizer.Summarizer
	store      store.ResultStore
	logger     *slog.Logger
	version    string
	server     *sdkmcp.Server
}

// SummarizeArgs is the tool input. Exactly one of Documents and Groups is set.
type SummarizeArgs struct {
	Documents     []string   `json:"documents,omitempty" jsonschema:"Texts of one group of related documents"`
	Groups        [][]string `json:"groups,omitempty" jsonschema:"Independent groups of document texts, summarized in one batch"`
	SingleSummary *bool      `json:"single_summary,omitempty" jsonschema:"Produce one summary per group instead of one per document"`
	BatchSize     int        `json:"batch_size,omitempty" jsonschema:"Spans per inference chunk"`
}

// SummarizeResult is the tool output; its summaries mirror the input shape.
type SummarizeResult struct {
	RunID     string            `json:"run_id,omitempty"`
	Summaries summarizer.Output `json:"summaries"`
}

// NewServer builds an MCP server around s.
func NewServer(s summarizer.Summarizer, opts ...Option) *Server {
	srv := &Server{
		summarizer: s,
		logger:     logging.WithComponent("mcp"),
		version:    "0.1.0",
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "batchsum",
		Title:   "Batch document summarizer",
		Version: srv.version,
	}, nil)
	sdkmcp.AddTool(srv.server, &sdkmcp.Tool{
		Name:        ToolName,
		Description: "Summarize documents. Pass `documents` for one group or `groups` for a batch; the result has the same shape.",
	}, srv.summarize)
	return srv
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *sdkmcp.Server {
	return s.server
}

// Run serves a single session over t, e.g. &sdkmcp.StdioTransport{}.
func (s *Server) Run(ctx context.Context, t sdkmcp.Transport) error {
	s.logger.InfoContext(ctx, "mcp server started", "tool", ToolName)
	return s.server.Run(ctx, t)
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.server
	}, nil)
}

func (s *Server) summarize(ctx context.Context, _ *sdkmcp.CallToolRequest, args SummarizeArgs) (*sdkmcp.CallToolResult, any, error) {
	input, err := args.input()
	if err != nil {
		return nil, nil, err
	}
	var opts []summarizer.CallOption
	if args.SingleSummary != nil {
		opts = append(opts, summarizer.GenerateSingleSummary(*args.SingleSummary))
	}
	if args.BatchSize > 0 {
		opts = append(opts, summarizer.BatchSize(args.BatchSize))
	}

	out, err := s.summarizer.SummarizeMany(ctx, input, opts...)
	if err != nil {
		s.logger.ErrorContext(ctx, "summarization failed", "error", err)
		return nil, nil, err
	}

	result := SummarizeResult{Summaries: out}
	if s.store != nil {
		result.RunID = uuid.NewString()
		if err := s.store.Save(ctx, result.RunID, out); err != nil {
			return nil, nil, fmt.Errorf("save run %s: %w", result.RunID, err)
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(payload)}},
	}, nil, nil
}

func (a SummarizeArgs) input() (summarizer.Input, error) {
	switch {
	case len(a.Documents) > 0 && len(a.Groups) > 0:
		return nil, errors.New("pass either documents or groups, not both")
	case len(a.Groups) > 0:
		groups := make(summarizer.GroupList, len(a.Groups))
		for i, g := range a.Groups {
			groups[i] = textDocuments(g)
		}
		return groups, nil
	default:
		return summarizer.FlatGroup(textDocuments(a.Documents)), nil
	}
}

func textDocuments(texts []string) []document.Document {
	docs := make([]document.Document, len(texts))
	for i, t := range texts {
		docs[i] = document.Document{Content: t}
	}
	return docs
}
