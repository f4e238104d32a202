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

// Package wasm sketches a WebAssembly reducer plug-in's shape without
// depending on a WASM runtime: no module in the reference corpus this
// package was built against imports one, so wiring a real engine here would
// mean fabricating a dependency rather than grounding one. See DESIGN.md.
package wasm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chainlayer/chainlayer/chainevent"
)

// ErrNotImplemented is returned by every Reducer method: the type exists to
// pin down the plug-in's interface and module bytes, not to execute them.
var ErrNotImplemented = errors.New("wasm: reducer plug-in not implemented")

// Reducer holds a compiled WASM module's bytes and the export names a real
// runtime would invoke for apply/undo, pending a chosen engine.
type Reducer struct {
	Module      []byte
	ApplyExport string
	UndoExport  string
}

// New validates that module bytes were supplied; it does not load them into
// any runtime.
func New(module []byte, applyExport, undoExport string) (*Reducer, error) {
	if len(module) == 0 {
		return nil, errors.New("wasm: empty module")
	}
	return &Reducer{Module: module, ApplyExport: applyExport, UndoExport: undoExport}, nil
}

func (r *Reducer) Apply(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}

func (r *Reducer) Undo(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}
