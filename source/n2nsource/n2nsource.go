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

// Package n2nsource sketches source.Adapter over Cardano's node-to-node
// mini-protocols (chain-sync/block-fetch). Validating or speaking those
// wire protocols is explicitly out of scope; this adapter exists only so
// n2nsource.Adapter satisfies source.Adapter and can be wired into tests.
package n2nsource

import (
	"context"
	"errors"

	"github.com/chainlayer/chainlayer/chainevent"
)

// ErrNotImplemented is returned by every method: connecting this adapter
// to a real node-to-node peer is out of scope.
var ErrNotImplemented = errors.New("n2nsource: node-to-node protocol not implemented")

// Adapter holds the peer address the real implementation would dial.
type Adapter struct {
	PeerAddr string
}

// New records the peer address for a future real implementation.
func New(peerAddr string) *Adapter {
	return &Adapter{PeerAddr: peerAddr}
}

func (a *Adapter) Intersect(ctx context.Context, candidates []chainevent.Point) (chainevent.Point, error) {
	return chainevent.Point{}, ErrNotImplemented
}

func (a *Adapter) NearTip(ctx context.Context, since chainevent.Point) (bool, error) {
	return false, ErrNotImplemented
}

func (a *Adapter) NextBatch(ctx context.Context, since chainevent.Point, maxItems int) ([]chainevent.Event, bool, error) {
	return nil, false, ErrNotImplemented
}

func (a *Adapter) NextTip(ctx context.Context, since chainevent.Point) (chainevent.Event, error) {
	return chainevent.Event{}, ErrNotImplemented
}

func (a *Adapter) Close() error { return nil }
