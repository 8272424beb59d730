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

package log

import (
	"context"
	"log/slog"
	"time"
)

// Call describes one inbound call on a surface (MCP tool, HTTP route or
// CLI command) for logging purposes.
type Call struct {
	// Surface is where the call arrived: "mcp", "http" or "cli".
	Surface string

	// Name is the tool, route or command name.
	Name string

	// RequestID identifies this call when the surface provides one.
	RequestID string

	// Remote is the remote address of the client, if any.
	Remote string
}

func (c *Call) attrs() []any {
	attrs := []any{
		"surface", c.Surface,
		OperationKey, c.Name,
	}
	if c.RequestID != "" {
		attrs = append(attrs, "request_id", c.RequestID)
	}
	if c.Remote != "" {
		attrs = append(attrs, "remote", c.Remote)
	}
	return attrs
}

// LogCallStart logs an incoming call at debug level.
func LogCallStart(ctx context.Context, logger *slog.Logger, call *Call) {
	logger.DebugContext(ctx, "call received", append(call.attrs(), EventKey, "call_start")...)
}

// LogCallEnd logs a finished call. Failures are logged at warn level since
// they are usually caller mistakes, not server faults.
func LogCallEnd(ctx context.Context, logger *slog.Logger, call *Call, elapsed time.Duration, err error) {
	attrs := append(call.attrs(),
		EventKey, "call_end",
		"success", err == nil,
		DurationKey, elapsed.Milliseconds(),
	)
	if err != nil {
		logger.WarnContext(ctx, "call failed", append(attrs, "error", err.Error())...)
		return
	}
	logger.InfoContext(ctx, "call completed", attrs...)
}

// CallMiddleware wraps call handlers with start and end logging.
type CallMiddleware struct {
	logger *slog.Logger
}

// NewCallMiddleware creates a new call logging middleware.
func NewCallMiddleware(logger *slog.Logger) *CallMiddleware {
	return &CallMiddleware{logger: logger}
}

// Handle runs handler and logs the call around it.
func (m *CallMiddleware) Handle(ctx context.Context, call *Call, handler func(context.Context) error) error {
	start := time.Now()
	LogCallStart(ctx, m.logger, call)
	err := handler(ctx)
	LogCallEnd(ctx, m.logger, call, time.Since(start), err)
	return err
}
