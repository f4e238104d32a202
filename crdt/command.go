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

// Package crdt defines the storage-independent CRDT mutation vocabulary a
// reducer emits for Redis-typed storage, and its JSON codec.
package crdt

// Kind enumerates the closed set of CRDT command variants.
type Kind uint8

const (
	SetAdd Kind = iota
	SetRemove
	GrowOnlySetAdd
	TwoPhaseSetAdd
	TwoPhaseSetRemove
	SortedSetAdd
	SortedSetRemove
	LastWriteWins
	AnyWriteWins
	PNCounter
	HashCounter
	HashSetValue
	HashUnsetKey
)

var kindNames = map[Kind]string{
	SetAdd:            "SetAdd",
	SetRemove:         "SetRemove",
	GrowOnlySetAdd:    "GrowOnlySetAdd",
	TwoPhaseSetAdd:    "TwoPhaseSetAdd",
	TwoPhaseSetRemove: "TwoPhaseSetRemove",
	SortedSetAdd:      "SortedSetAdd",
	SortedSetRemove:   "SortedSetRemove",
	LastWriteWins:     "LastWriteWins",
	AnyWriteWins:      "AnyWriteWins",
	PNCounter:         "PNCounter",
	HashCounter:       "HashCounter",
	HashSetValue:      "HashSetValue",
	HashUnsetKey:      "HashUnsetKey",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Command is a single CRDT mutation. Exactly the fields relevant to Kind
// are meaningful; it is a closed sum dispatched on Kind.
type Command struct {
	Kind Kind

	Set    string
	Key    string
	Member string

	Delta     int64
	Timestamp int64

	Value Value
}

// Equal reports whether c and other describe the same mutation.
func (c Command) Equal(other Command) bool {
	return c.Kind == other.Kind &&
		c.Set == other.Set &&
		c.Key == other.Key &&
		c.Member == other.Member &&
		c.Delta == other.Delta &&
		c.Timestamp == other.Timestamp &&
		c.Value.Equal(other.Value)
}
