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

// Package breadcrumbs implements the bounded, rollback-aware cursor history
// used to resume a pipeline after restart and to tolerate short chain
// reorganizations.
package breadcrumbs

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/chainlayer/chainlayer/chainevent"
)

// MaxBreadcrumbs is the cap on stored points.
const MaxBreadcrumbs = 20

// Breadcrumbs is an ordered sequence of up to MaxBreadcrumbs Specific
// points, newest at the front, with strictly decreasing slots.
type Breadcrumbs struct {
	points []chainevent.Point
}

// New returns an empty Breadcrumbs.
func New() *Breadcrumbs {
	return &Breadcrumbs{}
}

// FromPoints builds a Breadcrumbs from points already in newest-first
// order, as loaded from persisted storage. Origin points are never part of
// the persisted form and must not be passed here.
func FromPoints(points []chainevent.Point) *Breadcrumbs {
	b := &Breadcrumbs{points: append([]chainevent.Point(nil), points...)}
	return b
}

// Track removes every stored point with slot >= p.Slot (truncating any
// rolled-back tail), pushes p at the front, and drops the tail beyond
// MaxBreadcrumbs.
func (b *Breadcrumbs) Track(p chainevent.Point) {
	if p.IsOrigin() {
		return
	}
	kept := b.points[:0:0]
	for _, existing := range b.points {
		if existing.Slot >= p.Slot {
			continue
		}
		kept = append(kept, existing)
	}
	b.points = append([]chainevent.Point{p}, kept...)
	if len(b.points) > MaxBreadcrumbs {
		b.points = b.points[:MaxBreadcrumbs]
	}
}

// Front returns the newest tracked point, or false if empty.
func (b *Breadcrumbs) Front() (chainevent.Point, bool) {
	if len(b.points) == 0 {
		return chainevent.Point{}, false
	}
	return b.points[0], true
}

// Points returns the stored points, newest first. The caller must not
// mutate the returned slice.
func (b *Breadcrumbs) Points() []chainevent.Point {
	return b.points
}

// Len returns the number of stored points.
func (b *Breadcrumbs) Len() int {
	return len(b.points)
}

// Empty reports whether no points are stored.
func (b *Breadcrumbs) Empty() bool {
	return len(b.points) == 0
}

// ToData renders the breadcrumb list to its persisted JSON form: an
// ordered list of (slot, hex_hash) pairs, newest first.
func (b *Breadcrumbs) ToData() ([]byte, error) {
	rows := make([][2]interface{}, len(b.points))
	for i, p := range b.points {
		rows[i] = [2]interface{}{p.Slot, hex.EncodeToString(p.Hash)}
	}
	return json.Marshal(rows)
}

// FromData parses the persisted JSON form produced by ToData.
func FromData(data []byte) (*Breadcrumbs, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var rows [][2]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("breadcrumbs: decode: %w", err)
	}
	points := make([]chainevent.Point, len(rows))
	for i, row := range rows {
		var slot uint64
		if err := json.Unmarshal(row[0], &slot); err != nil {
			return nil, fmt.Errorf("breadcrumbs: decode slot at %d: %w", i, err)
		}
		var hexHash string
		if err := json.Unmarshal(row[1], &hexHash); err != nil {
			return nil, fmt.Errorf("breadcrumbs: decode hash at %d: %w", i, err)
		}
		hash, err := hex.DecodeString(hexHash)
		if err != nil {
			return nil, fmt.Errorf("breadcrumbs: decode hash at %d: %w", i, err)
		}
		points[i] = chainevent.NewPoint(slot, hash)
	}
	return FromPoints(points), nil
}

// Candidates returns the stored points as intersection candidates, newest
// (most preferred) first.
func (b *Breadcrumbs) Candidates() []chainevent.Point {
	return append([]chainevent.Point(nil), b.points...)
}
