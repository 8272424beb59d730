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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "catalog.db"), WAL: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fixtureTypes() []catalog.NodeType {
	return []catalog.NodeType{
		{
			Name:        "n8n-nodes-base.httpRequest",
			DisplayName: "HTTP Request",
			Description: "Makes an HTTP request",
			Category:    "core",
			Versions:    []float64{4.2, 1, 4},
			Properties: []catalog.Property{
				{Name: "url", Type: catalog.TypeString, Required: true},
			},
			ToolCapable: true,
		},
		{
			Name:        "n8n-nodes-base.webhook",
			DisplayName: "Webhook",
			Description: "Starts the workflow on an HTTP call",
			Versions:    []float64{2},
			Trigger:     true,
			Webhook:     true,
			Inputs:      []string{},
		},
		{
			Name:        "n8n-nodes-base.set",
			DisplayName: "Edit Fields (Set)",
			Versions:    []float64{3.4},
		},
	}
}

func TestStore_ImportAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.Import(ctx, fixtureTypes())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := store.Get(ctx, "n8n-nodes-base.httpRequest")
	require.NoError(t, err)
	assert.Equal(t, "HTTP Request", got.DisplayName)
	assert.True(t, got.ToolCapable)
	require.Len(t, got.Properties, 1)
	assert.Equal(t, "url", got.Properties[0].Name)

	_, err = store.Get(ctx, "n8n-nodes-base.missing")
	var notFound *errors.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestStore_ImportUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Import(ctx, fixtureTypes())
	require.NoError(t, err)

	updated := catalog.NodeType{Name: "n8n-nodes-base.set", DisplayName: "Set", Versions: []float64{3.4, 3.5}}
	_, err = store.Import(ctx, []catalog.NodeType{updated})
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := store.Get(ctx, "n8n-nodes-base.set")
	require.NoError(t, err)
	assert.Equal(t, "Set", got.DisplayName)
	assert.Equal(t, []float64{3.4, 3.5}, got.Versions)
}

func TestStore_ImportRejectsInvalidCatalog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Import(ctx, []catalog.NodeType{{Name: "a"}, {Name: "a"}})
	require.Error(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_Search(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.Import(ctx, fixtureTypes())
	require.NoError(t, err)

	tests := []struct {
		query string
		limit int
		want  []string
	}{
		{query: "http", want: []string{"n8n-nodes-base.httpRequest", "n8n-nodes-base.webhook"}},
		{query: "HTTP", limit: 1, want: []string{"n8n-nodes-base.httpRequest"}},
		{query: "fields", want: []string{"n8n-nodes-base.set"}},
		{query: "100%", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			types, err := store.Search(ctx, tt.query, tt.limit)
			require.NoError(t, err)
			var names []string
			for _, nt := range types {
				names = append(names, nt.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestStore_SnapshotAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.Import(ctx, fixtureTypes())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "n8n-nodes-base.set"))
	err = store.Delete(ctx, "n8n-nodes-base.set")
	var notFound *errors.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	maxVersion, ok := snap.MaxVersion("n8n-nodes-base.httpRequest")
	require.True(t, ok)
	assert.Equal(t, 4.2, maxVersion)
	assert.True(t, snap.IsTriggerCapable("n8n-nodes-base.webhook"))
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	store, err := Open(Config{Path: path})
	require.NoError(t, err)
	_, err = store.Import(ctx, fixtureTypes())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
