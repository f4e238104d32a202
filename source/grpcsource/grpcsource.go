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

// Package grpcsource implements source.Adapter over a gRPC tip-follower
// service: connection/framing only, delegating event production to the
// generated client the caller supplies (its .proto lives with the chain
// node's own service definition, not in this module).
package grpcsource

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/numeric"
)

// FollowerClient is the narrow surface a generated gRPC client for a
// chain-follower service must satisfy, mirroring the
// "SetLogPrefix/Add"-style context-bound RPC calls a downloader client
// exposes: each method is one RPC, proto request/response types erased to
// the Go shapes the adapter actually needs.
type FollowerClient interface {
	Intersect(ctx context.Context, candidates []chainevent.Point) (chainevent.Point, error)
	Tip(ctx context.Context) (chainevent.Point, error)
	Batch(ctx context.Context, since chainevent.Point, maxItems int) (events []chainevent.Event, hasMore bool, err error)
	StreamTip(ctx context.Context, since chainevent.Point) (chainevent.Event, error)
}

// Dial opens a plaintext gRPC connection to addr. Production deployments
// should pass transport credentials instead of insecure.NewCredentials;
// this default matches a local/sidecar follower process.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	allOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcsource: dial %s: %w", addr, err)
	}
	return conn, nil
}

// Adapter implements source.Adapter against a FollowerClient.
type Adapter struct {
	Client FollowerClient
	conn   *grpc.ClientConn
}

// New wraps an already-constructed FollowerClient (typically built over a
// *grpc.ClientConn from Dial). conn is optional and, if given, is closed by
// Close.
func New(client FollowerClient, conn *grpc.ClientConn) *Adapter {
	return &Adapter{Client: client, conn: conn}
}

func (a *Adapter) Intersect(ctx context.Context, candidates []chainevent.Point) (chainevent.Point, error) {
	p, err := a.Client.Intersect(ctx, candidates)
	if err != nil {
		return chainevent.Point{}, fmt.Errorf("grpcsource: intersect: %w", err)
	}
	return p, nil
}

func (a *Adapter) NearTip(ctx context.Context, since chainevent.Point) (bool, error) {
	tip, err := a.Client.Tip(ctx)
	if err != nil {
		return false, fmt.Errorf("grpcsource: tip: %w", err)
	}
	const nearThreshold = 2160 // slots; far less than one Shelley epoch (432000)
	return numeric.AbsoluteDifference(tip.Slot, since.Slot) <= nearThreshold, nil
}

func (a *Adapter) NextBatch(ctx context.Context, since chainevent.Point, maxItems int) ([]chainevent.Event, bool, error) {
	events, hasMore, err := a.Client.Batch(ctx, since, maxItems)
	if err != nil {
		return nil, false, fmt.Errorf("grpcsource: batch: %w", err)
	}
	return events, hasMore, nil
}

func (a *Adapter) NextTip(ctx context.Context, since chainevent.Point) (chainevent.Event, error) {
	ev, err := a.Client.StreamTip(ctx, since)
	if err != nil {
		return chainevent.Event{}, fmt.Errorf("grpcsource: stream tip: %w", err)
	}
	return ev, nil
}

func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
