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

package chainevent

import "fmt"

// Point is a position on the chain: either Origin or a specific slot/hash pair.
type Point struct {
	Slot     uint64
	Hash     []byte
	isOrigin bool
}

// Origin returns the distinguished point that precedes the genesis block.
func Origin() Point {
	return Point{isOrigin: true}
}

// NewPoint returns a specific point at the given slot and block hash.
func NewPoint(slot uint64, hash []byte) Point {
	return Point{Slot: slot, Hash: hash}
}

// IsOrigin reports whether p is the Origin point.
func (p Point) IsOrigin() bool {
	return p.isOrigin
}

// Equal reports whether p and other denote the same chain position.
func (p Point) Equal(other Point) bool {
	if p.isOrigin || other.isOrigin {
		return p.isOrigin == other.isOrigin
	}
	return p.Slot == other.Slot && string(p.Hash) == string(other.Hash)
}

func (p Point) String() string {
	if p.isOrigin {
		return "Origin"
	}
	return fmt.Sprintf("(%d, %x)", p.Slot, p.Hash)
}
