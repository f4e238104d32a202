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

// Package builtin is a Go-native reducer plug-in: Apply and Undo are plain
// functions registered ahead of time, for projections that don't need the
// flexibility (or sandboxing cost) of a scripted reducer.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chainlayer/chainlayer/chainevent"
)

// Func is the signature a registered projection implements for one
// direction.
type Func func(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error)

// Reducer dispatches to a pair of registered Funcs. A nil ApplyFn/UndoFn
// means "no mutation for that direction", matching the zero-or-one
// downstream-event contract.
type Reducer struct {
	ApplyFn Func
	UndoFn  Func
}

// New builds a Reducer from an apply/undo function pair.
func New(apply, undo Func) *Reducer {
	return &Reducer{ApplyFn: apply, UndoFn: undo}
}

func (r *Reducer) Apply(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	if r.ApplyFn == nil {
		return nil, nil
	}
	out, err := r.ApplyFn(ctx, block, resolved)
	if err != nil {
		return nil, fmt.Errorf("builtin apply: %w", err)
	}
	return out, nil
}

func (r *Reducer) Undo(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	if r.UndoFn == nil {
		return nil, nil
	}
	out, err := r.UndoFn(ctx, block, resolved)
	if err != nil {
		return nil, fmt.Errorf("builtin undo: %w", err)
	}
	return out, nil
}
