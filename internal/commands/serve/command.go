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

package serve

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/config"
	"github.com/tombee/flowsmith/internal/httpapi"
	mcpserver "github.com/tombee/flowsmith/internal/mcp/server"
	"github.com/tombee/flowsmith/internal/ratelimit"
)

// NewCommand creates the serve command
func NewCommand() *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flowsmith tools over MCP and HTTP",
		Long: `Serve exposes workflow validation, diffing, fixing and catalog lookup as
MCP tools.

With the stdio transport (the default) the MCP protocol runs over stdin and
stdout, which is how AI assistants launch MCP servers:

  {
    "mcpServers": {
      "flowsmith": {"command": "flowsmith", "args": ["serve"]}
    }
  }

With the http transport the same tools are served at /mcp (streamable
HTTP), alongside a REST API under /v1, /healthz and Prometheus metrics at
/metrics.

All calls share one rate limit (server.rate_limit in the configuration).`,
		Example: `  # MCP over stdio
  flowsmith serve

  # MCP and REST over HTTP
  flowsmith serve --transport http --addr 127.0.0.1:8740`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if addr != "" {
				cfg.Server.HTTPAddr = addr
			}
			switch cfg.Server.Transport {
			case config.TransportStdio, config.TransportHTTP:
			default:
				return shared.NewUsageError(fmt.Sprintf("unknown transport %q (expected stdio or http)", cfg.Server.Transport), nil)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for the http transport (default from config)")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	stderr := cmd.ErrOrStderr()
	rt, err := shared.BootstrapConfig(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			rt.Logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	version, _, _ := shared.GetVersion()
	limiter := ratelimit.New(cfg.Server.RateLimit.CallsPerMinute, cfg.Server.RateLimit.Burst)

	mcp, err := mcpserver.NewServer(mcpserver.ServerConfig{
		Name:    cfg.Server.Name,
		Version: version,
		Service: rt.Service,
		Limiter: limiter,
		Metrics: rt.Metrics,
		Logger:  rt.Logger,
	})
	if err != nil {
		return shared.NewFailureError("failed to create MCP server", err)
	}

	if cfg.Server.Transport == config.TransportStdio {
		return mcp.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	var gatherer prometheus.Gatherer
	if rt.Registry != nil {
		gatherer = rt.Registry
	}
	api := httpapi.New(httpapi.Config{
		Service:  rt.Service,
		Limiter:  limiter,
		Metrics:  rt.Metrics,
		Gatherer: gatherer,
		MCP:      mcp.Handler(),
		Logger:   rt.Logger,
		Version:  version,
	})

	ln, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return shared.NewFailureError("failed to listen on "+cfg.Server.HTTPAddr, err)
	}
	announce(stderr, ln.Addr().String())
	return api.Serve(ctx, ln, cfg.Server.ShutdownTimeout)
}

func announce(w io.Writer, addr string) {
	if shared.GetQuiet() {
		return
	}
	fmt.Fprintln(w, shared.RenderInfo("listening on http://"+addr+" (MCP at /mcp, REST at /v1)"))
}
