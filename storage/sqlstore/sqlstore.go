// Copyright 2024 The Chainlayer Authors
// This file is part of Chainlayer.
//
// Chainlayer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Chainlayer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Chainlayer. If not, see <http://www.gnu.org/licenses/>.

// Package sqlstore implements storage.Backend over database/sql: a
// record's statements execute in order inside one transaction, followed by
// an upsert of the persisted cursor into the same transaction. It is
// driver-agnostic — production wiring opens *sql.DB with
// github.com/jackc/pgx/v5/stdlib against Postgres; sqlstore_test.go opens
// it with modernc.org/sqlite so the package's tests need no live database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/storage"
)

// Backend is a storage.Backend over a database/sql handle. Schema is a
// prefix applied to the cursor table ("public" for a Postgres schema, ""
// for sqlite's single implicit schema).
type Backend struct {
	DB     *sql.DB
	Schema string
}

var _ storage.Backend = (*Backend)(nil)

// New wraps an already-opened *sql.DB.
func New(db *sql.DB, schema string) *Backend {
	return &Backend{DB: db, Schema: schema}
}

func (b *Backend) Kind() storage.Kind { return storage.KindPostgres }

func (b *Backend) cursorTable() string {
	if b.Schema == "" {
		return "cursor"
	}
	return b.Schema + ".cursor"
}

// EnsureSchema creates the cursor table if it does not already exist.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	_, err := b.DB.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, data TEXT)`, b.cursorTable()))
	if err != nil {
		return fmt.Errorf("sqlstore: ensure schema: %w", err)
	}
	return nil
}

func (b *Backend) Begin(ctx context.Context) (storage.Tx, error) {
	sqlTx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return &tx{sqlTx: sqlTx, cursorTable: b.cursorTable()}, nil
}

// LoadCursor reads the persisted breadcrumbs row for cursorName.
func (b *Backend) LoadCursor(ctx context.Context, cursorName string) (*breadcrumbs.Breadcrumbs, error) {
	row := b.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE name = $1`, b.cursorTable()), cursorName)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoCursor
		}
		return nil, fmt.Errorf("sqlstore: load cursor: %w", err)
	}
	crumbs, err := breadcrumbs.FromData([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: decode cursor: %w", err)
	}
	return crumbs, nil
}

type tx struct {
	sqlTx       *sql.Tx
	cursorTable string
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) Apply(ctx context.Context, rec chainevent.Record) error {
	if rec.Kind != chainevent.RecordSQLStatements {
		return fmt.Errorf("sqlstore: unexpected record kind %d", rec.Kind)
	}
	for _, stmt := range rec.Statements {
		if _, err := t.sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: exec statement: %w", err)
		}
	}
	return nil
}

func (t *tx) SaveCursor(ctx context.Context, cursorName string, b *breadcrumbs.Breadcrumbs) error {
	data, err := b.ToData()
	if err != nil {
		return fmt.Errorf("sqlstore: encode cursor: %w", err)
	}
	upsert := fmt.Sprintf(
		`INSERT INTO %s (name, data) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET data = excluded.data`, t.cursorTable)
	if _, err := t.sqlTx.ExecContext(ctx, upsert, cursorName, string(data)); err != nil {
		return fmt.Errorf("sqlstore: save cursor: %w", err)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlstore: rollback: %w", err)
	}
	return nil
}
