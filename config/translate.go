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

package config

import (
	"encoding/hex"
	"fmt"

	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/finalize"
	"github.com/chainlayer/chainlayer/intersect"
	"github.com/chainlayer/chainlayer/numeric"
)

// ToIntersect translates the tagged intersect configuration into the
// closed intersect.Config variant it names.
func (c IntersectConfig) ToIntersect() (intersect.Config, error) {
	switch c.Type {
	case "tip", "":
		return intersect.AtTip(), nil
	case "origin":
		return intersect.AtOrigin(), nil
	case "point":
		p, err := parsePoint(c.Value)
		if err != nil {
			return intersect.Config{}, fmt.Errorf("config: intersect point: %w", err)
		}
		return intersect.AtFixedPoint(p), nil
	case "breadcrumbs":
		items, ok := c.Value.([]any)
		if !ok {
			return intersect.Config{}, fmt.Errorf("config: intersect breadcrumbs: expected array, got %T", c.Value)
		}
		points := make([]chainevent.Point, 0, len(items))
		for i, item := range items {
			p, err := parsePoint(item)
			if err != nil {
				return intersect.Config{}, fmt.Errorf("config: intersect breadcrumbs[%d]: %w", i, err)
			}
			points = append(points, p)
		}
		return intersect.FromCandidates(points), nil
	default:
		return intersect.Config{}, fmt.Errorf("config: unknown intersect type %q", c.Type)
	}
}

// parsePoint decodes a [slot, hex_hash] pair as produced by TOML/JSON
// array syntax into a chainevent.Point.
func parsePoint(raw any) (chainevent.Point, error) {
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return chainevent.Point{}, fmt.Errorf("expected [slot, hex_hash] pair, got %T", raw)
	}
	slot, err := toUint64(pair[0])
	if err != nil {
		return chainevent.Point{}, fmt.Errorf("slot: %w", err)
	}
	hashHex, ok := pair[1].(string)
	if !ok {
		return chainevent.Point{}, fmt.Errorf("hash: expected string, got %T", pair[1])
	}
	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return chainevent.Point{}, fmt.Errorf("hash: %w", err)
	}
	return chainevent.NewPoint(slot, hash), nil
}

// toUint64 accepts the numeric shapes TOML/JSON decoding produces, plus a
// decimal or 0x-prefixed hex string for a hand-edited config file.
func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	case uint64:
		return n, nil
	case string:
		u, ok := numeric.ParseUint64(n)
		if !ok {
			return 0, fmt.Errorf("invalid integer %q", n)
		}
		return u, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// ToFinalize translates the optional finalize configuration block into
// finalize.Config, defaulting to disabled when f is nil.
func ToFinalize(f *FinalizeConfig) finalize.Config {
	if f == nil {
		return finalize.None()
	}
	if f.UntilHash != "" {
		hash, err := hex.DecodeString(f.UntilHash)
		if err == nil {
			return finalize.AtHash(hash)
		}
	}
	if f.MaxBlockSlot != nil {
		return finalize.AtOrAfterSlot(*f.MaxBlockSlot)
	}
	return finalize.None()
}
