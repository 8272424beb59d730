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

// Package sqlite persists node type descriptors in a SQLite database so a
// catalog can be imported once and served from disk.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/errors"
)

// Store is a SQLite-backed node type store.
type Store struct {
	db *sql.DB
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// Open opens or creates a catalog database.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}

	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS node_types (
			name TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			descriptor TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_types_category ON node_types(category)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Import upserts node types in one transaction and returns how many were written.
func (s *Store) Import(ctx context.Context, types []catalog.NodeType) (int, error) {
	// Reject bad input before touching the database.
	if _, err := catalog.NewSnapshot(types); err != nil {
		return 0, errors.Wrap(err, "invalid catalog")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO node_types (name, display_name, category, description, descriptor, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			category = excluded.category,
			description = excluded.description,
			descriptor = excluded.descriptor,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range types {
		t := &types[i]
		descriptor, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal %s: %w", t.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, t.Name, t.DisplayName, t.Category, t.Description, string(descriptor), now); err != nil {
			return 0, fmt.Errorf("failed to store %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(types), nil
}

// Get returns one node type by its exact name.
func (s *Store) Get(ctx context.Context, name string) (*catalog.NodeType, error) {
	var descriptor string
	err := s.db.QueryRowContext(ctx, `SELECT descriptor FROM node_types WHERE name = ?`, name).Scan(&descriptor)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "node type", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node type: %w", err)
	}
	return decode(descriptor)
}

// Delete removes a node type. Deleting an absent type is a NotFoundError.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM node_types WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete node type: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &errors.NotFoundError{Resource: "node type", ID: name}
	}
	return nil
}

// Count returns the number of stored node types.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM node_types`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count node types: %w", err)
	}
	return n, nil
}

// Search returns node types whose name, display name or description contains
// query, case-insensitively, ordered by name. A limit of zero means no limit.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]catalog.NodeType, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := `SELECT descriptor FROM node_types
		WHERE lower(name) LIKE ? ESCAPE '\' OR lower(display_name) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\'
		ORDER BY name`
	args := []any{pattern, pattern, pattern}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// Snapshot loads every stored node type into an immutable catalog snapshot.
func (s *Store) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	types, err := s.query(ctx, `SELECT descriptor FROM node_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return catalog.NewSnapshot(types)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]catalog.NodeType, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query node types: %w", err)
	}
	defer rows.Close()

	var types []catalog.NodeType
	for rows.Next() {
		var descriptor string
		if err := rows.Scan(&descriptor); err != nil {
			return nil, fmt.Errorf("failed to scan node type: %w", err)
		}
		t, err := decode(descriptor)
		if err != nil {
			return nil, err
		}
		types = append(types, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node types: %w", err)
	}
	return types, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(descriptor string) (*catalog.NodeType, error) {
	var t catalog.NodeType
	if err := json.Unmarshal([]byte(descriptor), &t); err != nil {
		return nil, fmt.Errorf("failed to decode node type: %w", err)
	}
	return &t, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
