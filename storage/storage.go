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

// Package storage implements the shared transactional commit protocol of
// spec.md §4.5: every backend applies an event's mutations and advances the
// persisted cursor inside one transaction.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/finalize"
	"github.com/chainlayer/chainlayer/pipeline"
)

// Kind identifies which concrete backend a Context is configured for.
type Kind string

const (
	KindNone     Kind = "None"
	KindPostgres Kind = "Postgres"
	KindRedis    Kind = "Redis"
)

// ErrNoCursor is returned by Backend.LoadCursor when no cursor row exists
// yet; callers should treat it as an empty Breadcrumbs, not a failure.
var ErrNoCursor = errors.New("storage: no cursor row")

// Tx is one backend transaction. Apply interprets rec according to the
// backend's own Kind (a Redis Tx expects RecordCRDTCommands, a SQL Tx
// expects RecordSQLStatements); the Redis and SQL implementations return
// an error for any other record kind.
type Tx interface {
	Apply(ctx context.Context, rec chainevent.Record) error
	SaveCursor(ctx context.Context, cursorName string, b *breadcrumbs.Breadcrumbs) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Backend is the per-engine half of the commit protocol: beginning
// transactions and loading the persisted cursor at startup.
type Backend interface {
	Kind() Kind
	Begin(ctx context.Context) (Tx, error)
	LoadCursor(ctx context.Context, cursorName string) (*breadcrumbs.Breadcrumbs, error)
}

var (
	commitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainlayer_storage_commits_total",
		Help: "Successful storage commits, by backend.",
	}, []string{"backend"})
	commitErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chainlayer_storage_commit_errors_total",
		Help: "Storage commit failures, by backend.",
	}, []string{"backend"})
	cursorSlot = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chainlayer_storage_cursor_slot",
		Help: "Slot of the most recently committed cursor front, by backend.",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(commitsTotal, commitErrorsTotal, cursorSlot)
}

// Engine drives the storage stage: it implements pipeline.Worker over an
// inbound event channel and a Backend, applying spec.md §4.5's seven-step
// commit protocol to each event.
type Engine struct {
	Backend    Backend
	CursorName string
	Finalize   finalize.Config
	Inbound    *pipeline.Chan[chainevent.Event]
	Log        *zap.Logger

	crumbs *breadcrumbs.Breadcrumbs
	done   bool
}

var _ pipeline.Worker = (*Engine)(nil)

// Bootstrap loads the persisted cursor to seed the in-memory breadcrumbs.
func (e *Engine) Bootstrap(ctx context.Context) error {
	crumbs, err := e.Backend.LoadCursor(ctx, e.CursorName)
	if err != nil {
		if errors.Is(err, ErrNoCursor) {
			crumbs = breadcrumbs.New()
		} else {
			return fmt.Errorf("storage: load cursor: %w", err)
		}
	}
	e.crumbs = crumbs
	return nil
}

// Schedule returns Done once a prior commit has matched the finalize
// condition; otherwise it receives the next event from Inbound, mapping a
// closed-and-drained channel to a clean Done as well.
func (e *Engine) Schedule(ctx context.Context) (pipeline.ScheduleResult, error) {
	if e.done {
		return pipeline.Done(), nil
	}
	ev, ok, err := e.Inbound.Recv(ctx)
	if err != nil {
		return pipeline.ScheduleResult{}, err
	}
	if !ok {
		return pipeline.Done(), nil
	}
	return pipeline.Unit(ev), nil
}

// Execute applies one event under the commit protocol.
func (e *Engine) Execute(ctx context.Context, work any) error {
	ev := work.(chainevent.Event)

	// Step 1: ignore Reset and any Apply/Undo without a record.
	if ev.Direction == chainevent.Reset || ev.Record == nil {
		return nil
	}

	backend := string(e.Backend.Kind())

	tx, err := e.Backend.Begin(ctx)
	if err != nil {
		commitErrorsTotal.WithLabelValues(backend).Inc()
		return fmt.Errorf("storage: begin: %w", err)
	}

	if !ev.Record.Empty() {
		if err := tx.Apply(ctx, *ev.Record); err != nil {
			_ = tx.Rollback(ctx)
			commitErrorsTotal.WithLabelValues(backend).Inc()
			return fmt.Errorf("storage: apply: %w", err)
		}
	}

	e.crumbs.Track(ev.Point)
	if err := tx.SaveCursor(ctx, e.CursorName, e.crumbs); err != nil {
		_ = tx.Rollback(ctx)
		commitErrorsTotal.WithLabelValues(backend).Inc()
		return fmt.Errorf("storage: save cursor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		commitErrorsTotal.WithLabelValues(backend).Inc()
		return fmt.Errorf("storage: commit: %w", err)
	}

	commitsTotal.WithLabelValues(backend).Inc()
	cursorSlot.WithLabelValues(backend).Set(float64(ev.Point.Slot))
	e.Log.Debug("committed", zap.String("backend", backend), zap.Uint64("slot", ev.Point.Slot), zap.Stringer("direction", loggableDirection{ev.Direction}))

	if e.Finalize.Matches(ev.Point) {
		e.done = true
	}
	return nil
}

// Teardown is a no-op: the commit protocol leaves no open resources
// between events, so a clean shutdown needs nothing extra.
func (e *Engine) Teardown(ctx context.Context) error {
	return nil
}

type loggableDirection struct{ d chainevent.Direction }

func (l loggableDirection) String() string { return l.d.String() }
