// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server implements an MCP server that exposes flowsmith
// functionality as tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/internal/metrics"
	"github.com/tombee/flowsmith/internal/ratelimit"
	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/internal/tracing"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

// Server wraps the MCP server and provides flowsmith tools
type Server struct {
	mcpServer *server.MCPServer
	name      string
	version   string
	service   *service.Service
	limiter   *ratelimit.Limiter
	metrics   *metrics.Collector
	calls     *log.CallMiddleware
	logger    *slog.Logger
	tools     []mcp.Tool
}

// ServerConfig configures the MCP server
type ServerConfig struct {
	// Name is the server name (default: "flowsmith")
	Name string

	// Version is the flowsmith version (default: "dev")
	Version string

	// Service runs the tool calls. Required.
	Service *service.Service

	// Limiter is shared with the other surfaces. Nil disables limiting.
	Limiter *ratelimit.Limiter

	// Metrics records rejected calls. Optional.
	Metrics *metrics.Collector

	// Logger must not write to stdout when serving stdio. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(config ServerConfig) (*Server, error) {
	if config.Service == nil {
		return nil, fmt.Errorf("mcp server: service is required")
	}
	if config.Name == "" {
		config.Name = "flowsmith"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "mcp")

	s := &Server{
		mcpServer: server.NewMCPServer(config.Name, config.Version, server.WithToolCapabilities(false)),
		name:      config.Name,
		version:   config.Version,
		service:   config.Service,
		limiter:   config.Limiter,
		metrics:   config.Metrics,
		calls:     log.NewCallMiddleware(logger),
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// Tools returns the registered tool definitions in registration order.
func (s *Server) Tools() []mcp.Tool {
	return s.tools
}

// Run serves the tools over stdio until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves the tools over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server", slog.String("version", s.version), slog.String("transport", "stdio"))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Handler returns a streamable HTTP handler for the tools. Sessions are not
// kept, so each request stands alone.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
}

// toolFunc runs one tool call with its decoded arguments.
type toolFunc func(ctx context.Context, args map[string]any) (any, error)

func (s *Server) addTool(tool mcp.Tool, fn toolFunc) {
	s.tools = append(s.tools, tool)
	s.mcpServer.AddTool(tool, s.handler(tool.Name, fn))
}

// handler applies rate limiting, call logging and correlation ids around fn
// and renders its result as JSON text.
func (s *Server) handler(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.limiter.Allow() {
			s.metrics.RecordRateLimited("mcp")
			return errorResponse("Rate limit exceeded. Please try again later."), nil
		}

		id := tracing.NewCorrelationID()
		ctx = tracing.ToContext(ctx, id)
		call := &log.Call{Surface: "mcp", Name: name, RequestID: id.String()}

		var result any
		err := s.calls.Handle(ctx, call, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, request.GetArguments())
			return err
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResponse(result)
	}
}

// toolFailure is the body of a failed tool call.
type toolFailure struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func toolError(err error) *mcp.CallToolResult {
	failure := toolFailure{Type: flowerrors.TypeOf(err), Message: err.Error()}
	var uv flowerrors.UserVisibleError
	if flowerrors.As(err, &uv) && uv.IsUserVisible() {
		failure.Message = uv.UserMessage()
		failure.Suggestion = uv.Suggestion()
	}
	var ve *flowerrors.ValidationError
	if flowerrors.As(err, &ve) && failure.Suggestion == "" {
		failure.Suggestion = ve.Suggestion
	}
	data, mErr := json.Marshal(map[string]toolFailure{"error": failure})
	if mErr != nil {
		return errorResponse(err.Error())
	}
	return errorResponse(string(data))
}

func jsonResponse(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return textResponse(string(data)), nil
}

// Helper function to create error response
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// Helper function to create success response
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
