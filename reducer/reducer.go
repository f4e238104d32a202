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

// Package reducer implements the pinned single-worker reducer stage of
// spec.md §4.4: Apply/Undo callbacks run strictly in event order, against a
// plug-in contract, and their JSON output is wrapped into the record shape
// the configured storage backend expects.
package reducer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/crdt"
	"github.com/chainlayer/chainlayer/pipeline"
	"github.com/chainlayer/chainlayer/storage"
)

// Reducer is the plug-in contract: Apply and Undo each receive one decoded
// block (already enriched with ResolvedInputs when the source adapter
// produced them) and return the mutation to persist, as raw JSON in the
// CRDT command or SQL statement array shape the storage backend expects.
// A nil/empty return means "no mutation for this block".
type Reducer interface {
	Apply(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error)
	Undo(ctx context.Context, block *chainevent.DecodedBlock, resolved chainevent.ResolvedInputs) (json.RawMessage, error)
}

// Stage implements pipeline.Worker over an inbound Decoded-record event
// channel and an outbound channel toward the storage stage. It never runs
// two callbacks concurrently: the reducer is pinned to the single goroutine
// that runs Run, matching spec.md's "sequential, in event order" guarantee.
type Stage struct {
	Reducer     Reducer
	StorageKind storage.Kind
	Inbound     *pipeline.Chan[chainevent.Event]
	Outbound    *pipeline.Chan[chainevent.Event]
	Log         *zap.Logger
}

var _ pipeline.Worker = (*Stage)(nil)

func (s *Stage) Bootstrap(ctx context.Context) error { return nil }

func (s *Stage) Schedule(ctx context.Context) (pipeline.ScheduleResult, error) {
	ev, ok, err := s.Inbound.Recv(ctx)
	if err != nil {
		return pipeline.ScheduleResult{}, err
	}
	if !ok {
		return pipeline.Done(), nil
	}
	return pipeline.Unit(ev), nil
}

func (s *Stage) Execute(ctx context.Context, work any) error {
	ev := work.(chainevent.Event)

	out, err := s.reduce(ctx, ev)
	if err != nil {
		return fmt.Errorf("reducer: %w", err)
	}

	return s.Outbound.Send(ctx, out)
}

func (s *Stage) Teardown(ctx context.Context) error { return nil }

// reduce invokes the plug-in callback for ev's direction (Reset and any
// event with no Decoded record pass through untouched) and wraps its JSON
// output into the record shape s.StorageKind expects.
func (s *Stage) reduce(ctx context.Context, ev chainevent.Event) (chainevent.Event, error) {
	if ev.Direction == chainevent.Reset || ev.Record == nil || ev.Record.Decoded == nil {
		return ev, nil
	}

	var (
		raw json.RawMessage
		err error
	)
	switch ev.Direction {
	case chainevent.Apply:
		raw, err = s.Reducer.Apply(ctx, ev.Record.Decoded, ev.Record.ResolvedInputs)
	case chainevent.Undo:
		raw, err = s.Reducer.Undo(ctx, ev.Record.Decoded, ev.Record.ResolvedInputs)
	}
	if err != nil {
		return chainevent.Event{}, fmt.Errorf("callback: %w", err)
	}
	if len(raw) == 0 {
		return chainevent.Event{Direction: ev.Direction, Point: ev.Point, Record: nil}, nil
	}

	rec, err := s.wrap(raw)
	if err != nil {
		return chainevent.Event{}, fmt.Errorf("wrap output: %w", err)
	}
	if rec == nil {
		// StorageKind == storage.KindNone: the callback ran for its side
		// effects only, so there is nothing to carry downstream.
		return chainevent.Event{Direction: ev.Direction, Point: ev.Point, Record: nil}, nil
	}

	switch ev.Direction {
	case chainevent.Apply:
		return chainevent.NewApply(ev.Point, *rec), nil
	case chainevent.Undo:
		return chainevent.NewUndo(ev.Point, *rec), nil
	default:
		return ev, nil
	}
}

func (s *Stage) wrap(raw json.RawMessage) (*chainevent.Record, error) {
	switch s.StorageKind {
	case storage.KindRedis:
		cmds, err := crdt.ParseCommands(raw)
		if err != nil {
			return nil, fmt.Errorf("parse CRDT commands: %w", err)
		}
		rec := chainevent.NewCommandsRecord(cmds)
		return &rec, nil
	case storage.KindPostgres:
		var stmts []string
		if err := json.Unmarshal(raw, &stmts); err != nil {
			return nil, fmt.Errorf("parse SQL statements: %w", err)
		}
		rec := chainevent.NewStatementsRecord(stmts)
		return &rec, nil
	default:
		// storage.KindNone: the callback ran for its side effects only; the
		// output is discarded rather than persisted anywhere.
		return nil, nil
	}
}
