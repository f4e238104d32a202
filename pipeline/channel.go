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

package pipeline

import "context"

// ChannelCapacity is the fixed buffer size of every stage-to-stage
// connection: large enough to decouple producer bursts from consumer
// latency, small enough to bound memory.
const ChannelCapacity = 100

// Chan is a bounded, single-producer single-consumer FIFO queue connecting
// two stages. Send suspends when full; Recv suspends when empty; both
// observe context cancellation at the suspension point.
type Chan[T any] struct {
	ch     chan T
	closed chan struct{}
}

// NewChan returns a Chan with the standard ChannelCapacity.
func NewChan[T any]() *Chan[T] {
	return &Chan[T]{ch: make(chan T, ChannelCapacity), closed: make(chan struct{})}
}

// Send enqueues v, suspending if the channel is full.
func (c *Chan[T]) Send(ctx context.Context, v T) error {
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv dequeues the next value, suspending if the channel is empty. ok is
// false once the channel has been closed and drained.
func (c *Chan[T]) Recv(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, ok = <-c.ch:
		return v, ok, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Close closes the channel; subsequent Recv calls drain remaining buffered
// values before reporting ok=false.
func (c *Chan[T]) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.ch)
	}
}
