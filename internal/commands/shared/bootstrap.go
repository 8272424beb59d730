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

package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tombee/flowsmith/internal/config"
	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/internal/metrics"
	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/internal/tracing"
	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/catalog/sqlite"
	"github.com/tombee/flowsmith/pkg/validator"
)

// Runtime holds everything a command needs to reach the service layer.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Tracing  *tracing.Provider
	Catalogs catalog.Provider
	Service  *service.Service

	closers []func(context.Context) error
}

// LoadConfig loads the file named by --config, or the default config file
// when it exists.
func LoadConfig() (*config.Config, error) {
	path := GetConfigPath()
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, NewUsageError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the stdio transport.
func NewLogger(cfg config.LogConfig, stderr io.Writer) *slog.Logger {
	level := cfg.Level
	switch {
	case GetVerbose():
		level = "debug"
	case GetQuiet():
		level = "error"
	}
	return log.New(&log.Config{
		Level:     level,
		Format:    log.Format(cfg.Format),
		Output:    stderr,
		AddSource: cfg.AddSource,
	})
}

// Bootstrap loads configuration and wires the catalog, metrics, tracing and
// service. Callers must Close the runtime.
func Bootstrap(ctx context.Context, stderr io.Writer) (*Runtime, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return BootstrapConfig(ctx, cfg, stderr)
}

// BootstrapConfig is Bootstrap with an already loaded configuration.
func BootstrapConfig(ctx context.Context, cfg *config.Config, stderr io.Writer) (*Runtime, error) {
	rt := &Runtime{
		Config: cfg,
		Logger: NewLogger(cfg.Log, stderr),
	}

	if cfg.Observability.MetricsEnabled {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rt.Metrics = metrics.New(rt.Registry)
	}

	v, _, _ := GetVersion()
	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:        cfg.Observability.TracingEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: v,
		Exporter:       cfg.Observability.TracingExporter,
		Writer:         stderr,
		OTLP: tracing.OTLPConfig{
			Endpoint: cfg.Observability.OTLPEndpoint,
			Insecure: cfg.Observability.OTLPInsecure,
			Headers:  cfg.Observability.OTLPHeaders,
		},
	})
	if err != nil {
		return nil, NewFailureError("failed to start tracing", err)
	}
	rt.Tracing = tp
	rt.closers = append(rt.closers, tp.Shutdown)

	catalogs, closeCatalog, err := openCatalog(ctx, cfg.Catalog, rt.Logger, rt.Metrics)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Catalogs = catalogs
	if closeCatalog != nil {
		rt.closers = append(rt.closers, closeCatalog)
	}
	if snap := catalogs.Current(); snap != nil {
		rt.Metrics.SetCatalogSize(snap.Len())
	}

	profile, err := validator.ParseProfile(cfg.Validation.DefaultProfile)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, NewUsageError("invalid validation.default_profile", err)
	}
	confidence, err := autofix.ParseConfidence(cfg.Validation.AutofixConfidence)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, NewUsageError("invalid validation.autofix_confidence", err)
	}

	rt.Service = service.New(catalogs).
		WithLogger(rt.Logger).
		WithMetrics(rt.Metrics).
		WithTracer(tp.Tracer()).
		WithCallTimeout(cfg.Server.CallTimeout).
		WithDefaults(profile, confidence)

	return rt, nil
}

// Close releases the catalog watcher and flushes traces.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// openCatalog picks the catalog source: a watched file, a plain file, a
// SQLite database, or the embedded catalog.
func openCatalog(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger, m *metrics.Collector) (catalog.Provider, func(context.Context) error, error) {
	switch {
	case cfg.Path != "" && cfg.Watch:
		w, err := catalog.NewWatcher(catalog.WatcherConfig{
			Path:   cfg.Path,
			Logger: log.WithComponent(logger, "catalog"),
			OnReload: func(snap *catalog.Snapshot, err error) {
				size := 0
				if snap != nil {
					size = snap.Len()
				}
				m.RecordCatalogReload(size, err)
			},
		})
		if err != nil {
			return nil, nil, NewFailureError("failed to load catalog", err)
		}
		return w, func(context.Context) error { return w.Close() }, nil

	case cfg.Path != "":
		snap, err := catalog.LoadFile(cfg.Path)
		if err != nil {
			return nil, nil, NewFailureError("failed to load catalog", err)
		}
		return snap, nil, nil

	case cfg.SQLitePath != "":
		store, err := sqlite.Open(sqlite.Config{Path: cfg.SQLitePath, WAL: true})
		if err != nil {
			return nil, nil, NewFailureError("failed to open catalog database", err)
		}
		defer store.Close()
		snap, err := store.Snapshot(ctx)
		if err != nil {
			return nil, nil, NewFailureError("failed to read catalog database", err)
		}
		if snap.Len() == 0 {
			return nil, nil, NewUsageError(fmt.Sprintf("catalog database %s is empty", cfg.SQLitePath), nil)
		}
		return snap, nil, nil
	}

	snap, err := catalog.Default()
	if err != nil {
		return nil, nil, NewFailureError("failed to load embedded catalog", err)
	}
	return snap, nil, nil
}
