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

// Package config loads flowsmith configuration from a YAML file and the
// environment. Environment variables take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Transports the server can expose its tools on.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the complete flowsmith configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Validation    ValidationConfig    `yaml:"validation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the MCP and HTTP surfaces.
type ServerConfig struct {
	// Name is reported to MCP clients during initialization.
	// Default: flowsmith
	Name string `yaml:"name"`

	// Transport selects stdio or http.
	// Environment: FLOWSMITH_TRANSPORT
	// Default: stdio
	Transport string `yaml:"transport"`

	// HTTPAddr is the listen address used by the http transport.
	// Environment: FLOWSMITH_HTTP_ADDR
	// Default: 127.0.0.1:8740
	HTTPAddr string `yaml:"http_addr"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CallTimeout is the wall-clock budget of a single tool call.
	// Environment: FLOWSMITH_CALL_TIMEOUT
	// Default: 30s
	CallTimeout time.Duration `yaml:"call_timeout"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket shared by all tool calls.
type RateLimitConfig struct {
	// CallsPerMinute is the sustained call rate. Zero disables limiting.
	// Environment: FLOWSMITH_RATE_LIMIT
	// Default: 120
	CallsPerMinute int `yaml:"calls_per_minute"`

	// Burst is the bucket size.
	// Default: 20
	Burst int `yaml:"burst"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// CatalogConfig selects where node type descriptors come from.
type CatalogConfig struct {
	// Path is a JSON or YAML catalog file. Empty uses the embedded catalog.
	// Environment: FLOWSMITH_CATALOG
	Path string `yaml:"path"`

	// SQLitePath is an optional catalog database. When set and Path is
	// empty, the catalog is read from the database.
	// Environment: FLOWSMITH_CATALOG_DB
	SQLitePath string `yaml:"sqlite_path"`

	// Watch reloads Path when the file changes.
	// Environment: FLOWSMITH_CATALOG_WATCH
	Watch bool `yaml:"watch"`
}

// ValidationConfig holds defaults for validation and fixing.
type ValidationConfig struct {
	// DefaultProfile is used when a call does not name one.
	// Environment: FLOWSMITH_PROFILE
	// Default: runtime
	DefaultProfile string `yaml:"default_profile"`

	// AutofixConfidence is the default minimum confidence for fixes.
	// Default: medium
	AutofixConfidence string `yaml:"autofix_confidence"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// MetricsEnabled registers Prometheus collectors and serves /metrics.
	// Environment: FLOWSMITH_METRICS
	// Default: true
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// TracingEnabled installs an OpenTelemetry tracer provider.
	// Environment: FLOWSMITH_TRACING
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingExporter is stdout, otlp, otlp-grpc or none.
	// Environment: FLOWSMITH_TRACING_EXPORTER
	// Default: stdout
	TracingExporter string `yaml:"tracing_exporter"`

	// OTLPEndpoint is the collector address for the otlp exporters, as
	// host:port or a full URL.
	// Environment: FLOWSMITH_OTLP_ENDPOINT
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS towards the collector.
	// Environment: FLOWSMITH_OTLP_INSECURE
	OTLPInsecure bool `yaml:"otlp_insecure"`

	// OTLPHeaders are sent with every export request.
	OTLPHeaders map[string]string `yaml:"otlp_headers,omitempty"`

	// ServiceName is the resource service.name attribute.
	// Default: flowsmith
	ServiceName string `yaml:"service_name"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            "flowsmith",
			Transport:       TransportStdio,
			HTTPAddr:        "127.0.0.1:8740",
			ShutdownTimeout: 5 * time.Second,
			CallTimeout:     30 * time.Second,
			RateLimit: RateLimitConfig{
				CallsPerMinute: 120,
				Burst:          20,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Validation: ValidationConfig{
			DefaultProfile:    "runtime",
			AutofixConfidence: "medium",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:  true,
			TracingExporter: "stdout",
			ServiceName:     "flowsmith",
		},
	}
}

// Load loads configuration from environment variables and optionally from a YAML file.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &flowerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Minimal files leave most fields zero.
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &flowerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Name == "" {
		c.Server.Name = defaults.Server.Name
	}
	if c.Server.Transport == "" {
		c.Server.Transport = defaults.Server.Transport
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaults.Server.HTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Server.CallTimeout == 0 {
		c.Server.CallTimeout = defaults.Server.CallTimeout
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = defaults.Server.RateLimit.Burst
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Validation.DefaultProfile == "" {
		c.Validation.DefaultProfile = defaults.Validation.DefaultProfile
	}
	if c.Validation.AutofixConfidence == "" {
		c.Validation.AutofixConfidence = defaults.Validation.AutofixConfidence
	}

	if c.Observability.TracingExporter == "" {
		c.Observability.TracingExporter = defaults.Observability.TracingExporter
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = defaults.Observability.ServiceName
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("FLOWSMITH_TRANSPORT"); val != "" {
		c.Server.Transport = strings.ToLower(val)
	}
	if val := os.Getenv("FLOWSMITH_HTTP_ADDR"); val != "" {
		c.Server.HTTPAddr = val
	}
	if val := os.Getenv("FLOWSMITH_CALL_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Server.CallTimeout = duration
		}
	}
	if val := os.Getenv("FLOWSMITH_RATE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Server.RateLimit.CallsPerMinute = n
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = parseBool(val)
	}

	if val := os.Getenv("FLOWSMITH_CATALOG"); val != "" {
		c.Catalog.Path = val
	}
	if val := os.Getenv("FLOWSMITH_CATALOG_DB"); val != "" {
		c.Catalog.SQLitePath = val
	}
	if val := os.Getenv("FLOWSMITH_CATALOG_WATCH"); val != "" {
		c.Catalog.Watch = parseBool(val)
	}

	if val := os.Getenv("FLOWSMITH_PROFILE"); val != "" {
		c.Validation.DefaultProfile = strings.ToLower(val)
	}

	if val := os.Getenv("FLOWSMITH_METRICS"); val != "" {
		c.Observability.MetricsEnabled = parseBool(val)
	}
	if val := os.Getenv("FLOWSMITH_TRACING"); val != "" {
		c.Observability.TracingEnabled = parseBool(val)
	}
	if val := os.Getenv("FLOWSMITH_TRACING_EXPORTER"); val != "" {
		c.Observability.TracingExporter = strings.ToLower(val)
	}
	if val := os.Getenv("FLOWSMITH_OTLP_ENDPOINT"); val != "" {
		c.Observability.OTLPEndpoint = val
	}
	if val := os.Getenv("FLOWSMITH_OTLP_INSECURE"); val != "" {
		c.Observability.OTLPInsecure = parseBool(val)
	}
}

func parseBool(val string) bool {
	return val == "1" || strings.EqualFold(val, "true")
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Sprintf("server.transport must be one of [stdio, http], got %q", c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP && c.Server.HTTPAddr == "" {
		errs = append(errs, "server.http_addr is required for the http transport")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}
	if c.Server.CallTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.call_timeout must be positive, got %v", c.Server.CallTimeout))
	}
	if c.Server.RateLimit.CallsPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("server.rate_limit.calls_per_minute must not be negative, got %d", c.Server.RateLimit.CallsPerMinute))
	}
	if c.Server.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Sprintf("server.rate_limit.burst must be at least 1, got %d", c.Server.RateLimit.Burst))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Catalog.Watch && c.Catalog.Path == "" {
		errs = append(errs, "catalog.watch requires catalog.path")
	}

	validProfiles := map[string]bool{"minimal": true, "runtime": true, "ai-friendly": true, "strict": true}
	if !validProfiles[c.Validation.DefaultProfile] {
		errs = append(errs, fmt.Sprintf("validation.default_profile must be one of [minimal, runtime, ai-friendly, strict], got %q", c.Validation.DefaultProfile))
	}
	validConfidence := map[string]bool{"low": true, "medium": true, "high": true}
	if !validConfidence[c.Validation.AutofixConfidence] {
		errs = append(errs, fmt.Sprintf("validation.autofix_confidence must be one of [low, medium, high], got %q", c.Validation.AutofixConfidence))
	}

	switch c.Observability.TracingExporter {
	case "stdout", "none":
	case "otlp", "otlp-grpc":
		if c.Observability.TracingEnabled && c.Observability.OTLPEndpoint == "" {
			errs = append(errs, fmt.Sprintf("observability.otlp_endpoint is required for the %s exporter", c.Observability.TracingExporter))
		}
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing_exporter must be one of [stdout, otlp, otlp-grpc, none], got %q", c.Observability.TracingExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
