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

// Package nullstore implements storage.Backend by discarding every
// mutation: useful for dry-run pipelines (reducer-only validation, or
// measuring source/reducer throughput without a datastore in the loop). It
// still tracks the cursor in memory so finalize conditions and restart
// semantics behave the same as a real backend.
package nullstore

import (
	"context"
	"sync"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/storage"
)

// Backend discards all mutations but keeps an in-memory cursor.
type Backend struct {
	mu     sync.Mutex
	crumbs *breadcrumbs.Breadcrumbs
}

var _ storage.Backend = (*Backend)(nil)

// New returns a Backend with an empty in-memory cursor.
func New() *Backend {
	return &Backend{crumbs: breadcrumbs.New()}
}

func (b *Backend) Kind() storage.Kind { return storage.KindNone }

func (b *Backend) Begin(ctx context.Context) (storage.Tx, error) {
	return &tx{backend: b}, nil
}

func (b *Backend) LoadCursor(ctx context.Context, cursorName string) (*breadcrumbs.Breadcrumbs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.crumbs.Empty() {
		return nil, storage.ErrNoCursor
	}
	return breadcrumbs.FromPoints(b.crumbs.Points()), nil
}

type tx struct {
	backend *Backend
	crumbs  *breadcrumbs.Breadcrumbs
}

var _ storage.Tx = (*tx)(nil)

// Apply discards rec's mutation: there is no datastore to apply it to.
func (t *tx) Apply(ctx context.Context, rec chainevent.Record) error {
	return nil
}

func (t *tx) SaveCursor(ctx context.Context, cursorName string, b *breadcrumbs.Breadcrumbs) error {
	t.crumbs = b
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.crumbs != nil {
		t.backend.mu.Lock()
		t.backend.crumbs = t.crumbs
		t.backend.mu.Unlock()
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.crumbs = nil
	return nil
}
