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

// Package chain holds network genesis parameters and the read-only Context
// bundle passed to every component constructor.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/finalize"
	"github.com/chainlayer/chainlayer/intersect"
	"github.com/chainlayer/chainlayer/numeric"
	"github.com/chainlayer/chainlayer/storage"
)

// Params carries the genesis values a source adapter needs to translate
// slots to wall-clock time and back, per network.
type Params struct {
	Name string

	ByronEpochLength   uint64
	ByronSlotLength    uint64
	ShelleyEpochLength uint64
	ShelleySlotLength  uint64

	ShelleyKnownSlot uint64
	ShelleyKnownHash []byte
	ShelleyKnownTime int64 // Unix seconds
}

// Mainnet returns the well-known Cardano mainnet genesis parameters.
func Mainnet() Params {
	return Params{
		Name:               "mainnet",
		ByronEpochLength:   21600,
		ByronSlotLength:    20,
		ShelleyEpochLength: 432000,
		ShelleySlotLength:  1,
		ShelleyKnownSlot:   4492800,
		ShelleyKnownTime:   1596059091,
	}
}

// Testnet returns the legacy public testnet genesis parameters.
func Testnet() Params {
	return Params{
		Name:               "testnet",
		ByronEpochLength:   21600,
		ByronSlotLength:    20,
		ShelleyEpochLength: 432000,
		ShelleySlotLength:  1,
		ShelleyKnownSlot:   1598400,
		ShelleyKnownTime:   1595967616,
	}
}

// PreProd returns the pre-production testnet genesis parameters.
func PreProd() Params {
	return Params{
		Name:               "preprod",
		ByronEpochLength:   21600,
		ByronSlotLength:    20,
		ShelleyEpochLength: 432000,
		ShelleySlotLength:  1,
		ShelleyKnownSlot:   86400,
		ShelleyKnownTime:   1655769600,
	}
}

// Preview returns the preview testnet genesis parameters.
func Preview() Params {
	return Params{
		Name:               "preview",
		ByronEpochLength:   21600,
		ByronSlotLength:    20,
		ShelleyEpochLength: 432000,
		ShelleySlotLength:  1,
		ShelleyKnownSlot:   0,
		ShelleyKnownTime:   1666656000,
	}
}

// ShelleyEpochAt returns the epoch number containing slot, counted from the
// Shelley hard fork's known slot. Slots before that point belong to epoch 0.
func (p Params) ShelleyEpochAt(slot uint64) uint64 {
	if slot <= p.ShelleyKnownSlot || p.ShelleyEpochLength == 0 {
		return 0
	}
	return numeric.CeilDiv(slot-p.ShelleyKnownSlot, p.ShelleyEpochLength)
}

// Resolve maps a configured chain name to its genesis parameters. "custom"
// requires the caller to supply custom, matching the config's optional
// override block.
func Resolve(name string, custom *Params) (Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet":
		return Mainnet(), nil
	case "testnet":
		return Testnet(), nil
	case "preprod":
		return PreProd(), nil
	case "preview":
		return Preview(), nil
	case "custom":
		if custom == nil {
			return Params{}, errors.New("chain: custom chain requires explicit parameters")
		}
		return *custom, nil
	default:
		return Params{}, fmt.Errorf("chain: unknown chain %q", name)
	}
}

// Context is the read-only bundle passed to every component constructor:
// working directory, network parameters, intersect policy, the cursor
// loaded from storage at startup, the finalize policy, and the storage
// backend's identity.
type Context struct {
	WorkDir     string
	Params      Params
	Intersect   intersect.Config
	Cursor      *breadcrumbs.Breadcrumbs
	Finalize    finalize.Config
	StorageKind storage.Kind
}
