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

// Package script is a JavaScript reducer plug-in, evaluated by an embedded
// goja runtime. A script defines top-level apply(block, resolved) and/or
// undo(block, resolved) functions; each receives the decoded block and its
// resolved inputs as plain JS objects (round-tripped through JSON, not
// reflected Go values) and returns the CRDT commands or SQL statements to
// persist, or undefined/null for no mutation.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/chainlayer/chainlayer/chainevent"
)

// Reducer runs one compiled script. A goja.Runtime is not safe for
// concurrent use; mu protects against a caller accidentally violating the
// pipeline's own single-worker guarantee (e.g. from a test driving Apply
// and Undo from separate goroutines).
type Reducer struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	applyFn goja.Callable
	undoFn  goja.Callable
}

// New compiles src and binds its apply/undo globals. Neither function is
// required; a script defining only one direction is valid.
func New(src string) (*Reducer, error) {
	vm := goja.New()
	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}

	r := &Reducer{vm: vm}
	if fn, ok := goja.AssertFunction(vm.Get("apply")); ok {
		r.applyFn = fn
	}
	if fn, ok := goja.AssertFunction(vm.Get("undo")); ok {
		r.undoFn = fn
	}
	if r.applyFn == nil && r.undoFn == nil {
		return nil, errors.New("script: defines neither apply nor undo")
	}
	return r, nil
}

func (r *Reducer) Apply(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	return r.call(r.applyFn, block, resolved)
}

func (r *Reducer) Undo(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	return r.call(r.undoFn, block, resolved)
}

func (r *Reducer) call(fn goja.Callable, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error) {
	if fn == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	blockVal, err := r.toJS(block)
	if err != nil {
		return nil, fmt.Errorf("script: marshal block: %w", err)
	}
	resolvedVal, err := r.toJS(resolved)
	if err != nil {
		return nil, fmt.Errorf("script: marshal resolved inputs: %w", err)
	}

	result, err := fn(goja.Undefined(), blockVal, resolvedVal)
	if err != nil {
		return nil, fmt.Errorf("script: callback: %w", err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}

	out, err := r.fromJS(result)
	if err != nil {
		return nil, fmt.Errorf("script: unmarshal result: %w", err)
	}
	return out, nil
}

func (r *Reducer) jsonObject() *goja.Object {
	return r.vm.GlobalObject().Get("JSON").ToObject(r.vm)
}

func (r *Reducer) toJS(v any) (goja.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(r.jsonObject().Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable in runtime")
	}
	return parse(goja.Undefined(), r.vm.ToValue(string(raw)))
}

func (r *Reducer) fromJS(v goja.Value) (json.RawMessage, error) {
	stringify, ok := goja.AssertFunction(r.jsonObject().Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify unavailable in runtime")
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out.String()), nil
}
