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

// Package source implements the chain-follower stage of spec.md §4.3: it
// produces a lazy ordered stream of chainevent.Events starting from an
// intersection point, switching between bulk history paging and tip-follow
// streaming as it catches up, and suppressing the one duplicate Apply a
// resumed follower protocol would otherwise replay.
package source

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/intersect"
	"github.com/chainlayer/chainlayer/pipeline"
)

// DefaultMaxItemsPerPage is the batch size used while dumping history,
// absent an explicit override.
const DefaultMaxItemsPerPage = 20

// Adapter is the per-protocol half of the source stage: choosing an
// intersection, paging history, and streaming the tip. Implementations
// (grpcsource, cborsource, n2nsource) own the wire protocol; Engine owns
// the dump-vs-follow policy and restart-suppression rule shared by all of
// them.
type Adapter interface {
	// Intersect picks the best mutually-known point among candidates
	// (earlier entries preferred), returning it as the starting cursor.
	Intersect(ctx context.Context, candidates []chainevent.Point) (chainevent.Point, error)
	// NearTip reports whether since is close enough to the adapter's view
	// of the chain tip that the engine should switch to tip-follow
	// streaming instead of bulk paging.
	NearTip(ctx context.Context, since chainevent.Point) (bool, error)
	// NextBatch returns up to maxItems ordered events starting after
	// since. hasMore is false once the batch reaches the adapter's last
	// known point at call time.
	NextBatch(ctx context.Context, since chainevent.Point, maxItems int) (events []chainevent.Event, hasMore bool, err error)
	// NextTip suspends until the next tip-follow event (Apply, Undo, or
	// Reset) after since is available.
	NextTip(ctx context.Context, since chainevent.Point) (chainevent.Event, error)
	// Close releases any connection held by the adapter.
	Close() error
}

var batchSizeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chainlayer_source_batch_size",
	Help:    "Number of events returned per NextBatch call.",
	Buckets: prometheus.LinearBuckets(0, 5, 8),
}, []string{"adapter"})

func init() {
	prometheus.MustRegister(batchSizeHist)
}

// Engine implements pipeline.Worker over an Adapter, applying spec.md
// §4.3's dump-vs-follow policy and first-Apply suppression.
type Engine struct {
	Adapter         Adapter
	AdapterName     string
	Intersect       intersect.Config
	MaxItemsPerPage int
	// Resuming is true when Intersect.Candidates() came from a persisted
	// cursor rather than a fresh IntersectConfig: the follower protocol
	// replays the intersection block itself as its first Apply, which
	// must be suppressed to avoid double-applying it.
	Resuming bool
	Outbound *pipeline.Chan[chainevent.Event]
	Log      *zap.Logger

	cursor        chainevent.Point
	queue         []chainevent.Event
	suppressFirst bool
}

var _ pipeline.Worker = (*Engine)(nil)

// Bootstrap resolves the starting intersection.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if e.MaxItemsPerPage <= 0 {
		e.MaxItemsPerPage = DefaultMaxItemsPerPage
	}
	p, err := e.Adapter.Intersect(ctx, e.Intersect.Candidates())
	if err != nil {
		return fmt.Errorf("source: intersect: %w", err)
	}
	e.cursor = p
	e.suppressFirst = e.Resuming
	return nil
}

// Schedule drains any buffered batch first, otherwise pages more history or
// pulls the next tip-follow event depending on proximity to tip.
func (e *Engine) Schedule(ctx context.Context) (pipeline.ScheduleResult, error) {
	if ev, ok := e.popQueue(); ok {
		return pipeline.Unit(ev), nil
	}

	near, err := e.Adapter.NearTip(ctx, e.cursor)
	if err != nil {
		return pipeline.ScheduleResult{}, fmt.Errorf("source: near tip: %w", err)
	}

	if near {
		ev, err := e.Adapter.NextTip(ctx, e.cursor)
		if err != nil {
			return pipeline.ScheduleResult{}, fmt.Errorf("source: next tip: %w", err)
		}
		if e.filterSuppressed(ev) {
			return pipeline.Idle(), nil
		}
		e.cursor = ev.Point
		return pipeline.Unit(ev), nil
	}

	// hasMore only informs whether the adapter expects another batch call
	// to make progress; NearTip governs the actual mode switch next round.
	events, _, err := e.Adapter.NextBatch(ctx, e.cursor, e.MaxItemsPerPage)
	if err != nil {
		return pipeline.ScheduleResult{}, fmt.Errorf("source: next batch: %w", err)
	}
	batchSizeHist.WithLabelValues(e.AdapterName).Observe(float64(len(events)))

	if len(events) == 0 {
		return pipeline.Idle(), nil
	}

	for _, ev := range events {
		if e.filterSuppressed(ev) {
			continue
		}
		e.queue = append(e.queue, ev)
	}
	if len(e.queue) > 0 {
		e.cursor = e.queue[len(e.queue)-1].Point
	}

	ev, ok := e.popQueue()
	if !ok {
		return pipeline.Idle(), nil
	}
	return pipeline.Unit(ev), nil
}

// Execute forwards one event downstream.
func (e *Engine) Execute(ctx context.Context, work any) error {
	ev := work.(chainevent.Event)
	return e.Outbound.Send(ctx, ev)
}

// Teardown closes the adapter's connection.
func (e *Engine) Teardown(ctx context.Context) error {
	if err := e.Adapter.Close(); err != nil {
		return fmt.Errorf("source: close adapter: %w", err)
	}
	return nil
}

func (e *Engine) popQueue() (chainevent.Event, bool) {
	if len(e.queue) == 0 {
		return chainevent.Event{}, false
	}
	ev := e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

// filterSuppressed reports whether ev is the one duplicate Apply a resumed
// connection replays at the intersection point, consuming the
// suppression flag if so.
func (e *Engine) filterSuppressed(ev chainevent.Event) bool {
	if !e.suppressFirst {
		return false
	}
	e.suppressFirst = false
	return ev.Direction == chainevent.Apply && ev.Point.Equal(e.cursor)
}
