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

// Package finalize describes the optional stop condition that triggers a
// clean pipeline shutdown once matched.
package finalize

import "github.com/chainlayer/chainlayer/chainevent"

// Config is the optional finalize condition: an exact block hash, or the
// first block at or after a given slot. A zero Config never matches.
type Config struct {
	set         bool
	exactHash   []byte
	minSlot     uint64
	useMinSlot  bool
}

// None returns a Config that never matches.
func None() Config { return Config{} }

// AtHash matches the first committed point whose hash equals hash.
func AtHash(hash []byte) Config {
	return Config{set: true, exactHash: append([]byte(nil), hash...)}
}

// AtOrAfterSlot matches the first committed point at or after slot.
func AtOrAfterSlot(slot uint64) Config {
	return Config{set: true, useMinSlot: true, minSlot: slot}
}

// Enabled reports whether a stop condition is configured.
func (c Config) Enabled() bool { return c.set }

// Matches reports whether p satisfies the configured stop condition.
func (c Config) Matches(p chainevent.Point) bool {
	if !c.set || p.IsOrigin() {
		return false
	}
	if c.useMinSlot {
		return p.Slot >= c.minSlot
	}
	return string(p.Hash) == string(c.exactHash)
}
