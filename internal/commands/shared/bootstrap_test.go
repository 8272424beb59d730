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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tombee/flowsmith/internal/config"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/catalog/sqlite"
)

func TestBootstrapConfig_EmbeddedCatalog(t *testing.T) {
	ResetFlagsForTest()
	cfg := config.Default()

	rt, err := BootstrapConfig(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("BootstrapConfig() error = %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Service == nil {
		t.Fatal("service not wired")
	}
	if snap := rt.Catalogs.Current(); snap == nil || snap.Len() == 0 {
		t.Error("embedded catalog not loaded")
	}
	if rt.Registry == nil {
		t.Error("metrics enabled by default but no registry created")
	}
}

func TestBootstrapConfig_BadProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Validation.DefaultProfile = "paranoid"

	_, err := BootstrapConfig(context.Background(), cfg, io.Discard)
	if ExitCode(err) != ExitUsage {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestBootstrapConfig_OTLPTracing(t *testing.T) {
	ResetFlagsForTest()
	cfg := config.Default()
	cfg.Observability.TracingEnabled = true
	cfg.Observability.TracingExporter = "otlp"
	cfg.Observability.OTLPEndpoint = "127.0.0.1:4318"
	cfg.Observability.OTLPInsecure = true

	rt, err := BootstrapConfig(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("BootstrapConfig() error = %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Tracing == nil {
		t.Fatal("tracing provider not wired")
	}
}

func TestBootstrapConfig_SQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	snap, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	types := make([]catalog.NodeType, 0, snap.Len())
	for _, nt := range snap.List() {
		types = append(types, *nt)
	}
	store, err := sqlite.Open(sqlite.Config{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Import(ctx, types); err != nil {
		t.Fatal(err)
	}
	store.Close()

	cfg := config.Default()
	cfg.Catalog.SQLitePath = dbPath
	rt, err := BootstrapConfig(ctx, cfg, io.Discard)
	if err != nil {
		t.Fatalf("BootstrapConfig() error = %v", err)
	}
	defer rt.Close(ctx)

	if got := rt.Catalogs.Current().Len(); got != snap.Len() {
		t.Errorf("catalog size = %d, want %d", got, snap.Len())
	}
}

func TestBootstrapConfig_WatchedCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `nodes:
  - name: n8n-nodes-base.noOp
    displayName: No Operation
    versions: [1]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Catalog.Path = path
	cfg.Catalog.Watch = true
	rt, err := BootstrapConfig(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("BootstrapConfig() error = %v", err)
	}
	defer rt.Close(context.Background())

	if _, ok := rt.Catalogs.(*catalog.Watcher); !ok {
		t.Errorf("expected a watcher provider, got %T", rt.Catalogs)
	}
	if got := rt.Catalogs.Current().Len(); got != 1 {
		t.Errorf("catalog size = %d, want 1", got)
	}
}
