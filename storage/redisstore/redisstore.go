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

// Package redisstore implements storage.Backend over Redis: each CRDT
// command maps to a fixed Redis operation, and a whole event's commands
// plus its cursor update run inside one TxPipelined MULTI/EXEC.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/crdt"
	"github.com/chainlayer/chainlayer/storage"
)

// client narrows *redis.Client to the operations redisstore calls
// (TxPipelined, Get) plus Close, so tests can substitute a mock without a
// live server.
type client interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

var _ client = (*redis.Client)(nil)

// Backend is a storage.Backend over a Redis client.
type Backend struct {
	Client client
}

var _ storage.Backend = (*Backend)(nil)

// New wraps an already-configured *redis.Client.
func New(c *redis.Client) *Backend {
	return &Backend{Client: c}
}

func (b *Backend) Kind() storage.Kind { return storage.KindRedis }

func (b *Backend) Begin(ctx context.Context) (storage.Tx, error) {
	return &tx{client: b.Client}, nil
}

// LoadCursor reads the persisted breadcrumbs from cursorName.
func (b *Backend) LoadCursor(ctx context.Context, cursorName string) (*breadcrumbs.Breadcrumbs, error) {
	data, err := b.Client.Get(ctx, cursorName).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNoCursor
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get cursor: %w", err)
	}
	crumbs, err := breadcrumbs.FromData(data)
	if err != nil {
		return nil, fmt.Errorf("redisstore: decode cursor: %w", err)
	}
	return crumbs, nil
}

// tx buffers the pipe operations for one event and flushes them together
// in TxPipelined on Commit, so a mid-event failure never partially applies.
type tx struct {
	client client
	ops    []func(redis.Pipeliner) error
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) Apply(ctx context.Context, rec chainevent.Record) error {
	if rec.Kind != chainevent.RecordCRDTCommands {
		return fmt.Errorf("redisstore: unexpected record kind %d", rec.Kind)
	}
	for _, cmd := range rec.Commands {
		cmd := cmd
		op, err := commandOp(ctx, cmd)
		if err != nil {
			return err
		}
		t.ops = append(t.ops, op)
	}
	return nil
}

func (t *tx) SaveCursor(ctx context.Context, cursorName string, b *breadcrumbs.Breadcrumbs) error {
	data, err := b.ToData()
	if err != nil {
		return fmt.Errorf("redisstore: encode cursor: %w", err)
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) error {
		return pipe.Set(ctx, cursorName, data, 0).Err()
	})
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if len(t.ops) == 0 {
		return nil
	}
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range t.ops {
			if err := op(pipe); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: tx pipelined: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.ops = nil
	return nil
}

// commandOp maps one CRDT command to the fixed Redis call it performs,
// deferred until the owning tx's pipeline executes.
func commandOp(ctx context.Context, cmd crdt.Command) (func(redis.Pipeliner) error, error) {
	switch cmd.Kind {
	case crdt.SetAdd, crdt.GrowOnlySetAdd, crdt.TwoPhaseSetAdd:
		return func(pipe redis.Pipeliner) error {
			return pipe.SAdd(ctx, cmd.Set, cmd.Member).Err()
		}, nil

	case crdt.SetRemove:
		return func(pipe redis.Pipeliner) error {
			return pipe.SRem(ctx, cmd.Set, cmd.Member).Err()
		}, nil

	case crdt.TwoPhaseSetRemove:
		// Removal never touches the primary set: the member is added to a
		// companion tombstone set instead, so a later re-add of the same
		// member after a remove stays excluded (two-phase-set semantics).
		return func(pipe redis.Pipeliner) error {
			return pipe.SAdd(ctx, cmd.Set+".ts", cmd.Member).Err()
		}, nil

	case crdt.SortedSetAdd:
		return func(pipe redis.Pipeliner) error {
			return pipe.ZIncrBy(ctx, cmd.Set, float64(cmd.Delta), cmd.Member).Err()
		}, nil

	case crdt.SortedSetRemove:
		return func(pipe redis.Pipeliner) error {
			if err := pipe.ZIncrBy(ctx, cmd.Set, -float64(cmd.Delta), cmd.Member).Err(); err != nil {
				return err
			}
			return pipe.ZRemRangeByScore(ctx, cmd.Set, "0", "0").Err()
		}, nil

	case crdt.LastWriteWins:
		v, err := valueToString(cmd.Value)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) error {
			return pipe.ZAdd(ctx, cmd.Key, redis.Z{Score: float64(cmd.Timestamp), Member: v}).Err()
		}, nil

	case crdt.AnyWriteWins:
		v, err := valueToString(cmd.Value)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) error {
			return pipe.Set(ctx, cmd.Key, v, 0).Err()
		}, nil

	case crdt.PNCounter:
		return func(pipe redis.Pipeliner) error {
			return pipe.IncrBy(ctx, cmd.Key, cmd.Delta).Err()
		}, nil

	case crdt.HashCounter:
		return func(pipe redis.Pipeliner) error {
			return pipe.HIncrBy(ctx, cmd.Key, cmd.Member, cmd.Delta).Err()
		}, nil

	case crdt.HashSetValue:
		v, err := valueToString(cmd.Value)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) error {
			return pipe.HSet(ctx, cmd.Key, cmd.Member, v).Err()
		}, nil

	case crdt.HashUnsetKey:
		return func(pipe redis.Pipeliner) error {
			return pipe.HDel(ctx, cmd.Key, cmd.Member).Err()
		}, nil

	default:
		return nil, fmt.Errorf("redisstore: unhandled command kind %s", cmd.Kind)
	}
}

func valueToString(v crdt.Value) (string, error) {
	switch v.Kind {
	case crdt.ValueString:
		return v.Str, nil
	case crdt.ValueInt128:
		if v.Int == nil {
			return new(big.Int).String(), nil
		}
		return v.Int.String(), nil
	case crdt.ValueBytes:
		return string(v.Bytes), nil
	case crdt.ValueJSON:
		return string(v.JSON), nil
	default:
		return "", fmt.Errorf("redisstore: unknown value kind %d", v.Kind)
	}
}
