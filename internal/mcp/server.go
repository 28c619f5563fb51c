// Package mcp exposes the attendance signal pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"sync"

	"attn-signals/internal/config"
	"attn-signals/internal/pipeline"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ErrNotAnalysed is returned by query tools before analyze_attendance has run.
var ErrNotAnalysed = errors.New("no attendance data analysed yet; call analyze_attendance first")

// Server holds the state for the MCP server: the policy every run uses and
// the most recent result.
type Server struct {
	cfg     *config.AppConfig
	policy  config.Policy
	version string

	mu     sync.RWMutex
	result *pipeline.Result
}

// NewServer creates a new MCP server.
func NewServer(cfg *config.AppConfig, policy config.Policy, version string) *Server {
	return &Server{cfg: cfg, policy: policy, version: version}
}

// Tools registers every tool on srv.
func (s *Server) Tools(srv *sdkmcp.Server) {
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "analyze_attendance",
		Description: "Run the attendance signal pipeline over a CSV, XLSX or JSONL punch file and cache the result.",
	}, s.handleAnalyze)

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "get_student_signals",
		Description: "Get the tier, trend, cut summaries and award of one student from the last analysis.",
	}, s.handleStudentSignals)

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "list_tiers",
		Description: "List tier assignments from the last analysis, optionally filtered by cohort and tier.",
	}, s.handleListTiers)

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "list_awards",
		Description: "List the most-improved award per course section from the last analysis.",
	}, s.handleListAwards)
}

// Serve runs the stdio loop until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "attn-signals", Version: s.version}, nil)
	s.Tools(srv)

	log.Info().Msg("MCP Server starting Stdio loop")
	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) current() (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, ErrNotAnalysed
	}
	return s.result, nil
}

func (s *Server) store(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}
