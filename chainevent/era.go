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

// Era identifies the ledger era a block or resolved output belongs to.
// The resolved-input context keys prior outputs by (Era, CBOR) so a reducer
// can decode them with the right era-specific schema.
type Era uint8

const (
	EraByron Era = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

func (e Era) String() string {
	switch e {
	case EraByron:
		return "byron"
	case EraShelley:
		return "shelley"
	case EraAllegra:
		return "allegra"
	case EraMary:
		return "mary"
	case EraAlonzo:
		return "alonzo"
	case EraBabbage:
		return "babbage"
	case EraConway:
		return "conway"
	default:
		return "unknown"
	}
}

// ResolvedOutput is a prior transaction output supplied as context to a
// reducer processing a block that consumes it.
type ResolvedOutput struct {
	Era  Era
	CBOR []byte
}
