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

// Package cborsource implements source.Adapter over a directory of
// CBOR-encoded block dumps: one file per block, read in sorted filename
// order, a filename containing "undo" producing an Undo event and every
// other file an Apply. It is a finite replay source with no live tail,
// useful for tests and fixture-driven reprocessing.
package cborsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chainlayer/chainlayer/chainevent"
)

// wireBlock is the on-disk CBOR shape of one dumped block.
type wireBlock struct {
	Era          uint8    `cbor:"0,keyasint"`
	Slot         uint64   `cbor:"1,keyasint"`
	Hash         []byte   `cbor:"2,keyasint"`
	Height       uint64   `cbor:"3,keyasint"`
	Transactions []wireTx `cbor:"4,keyasint"`
}

type wireTx struct {
	Hash    []byte   `cbor:"0,keyasint"`
	Inputs  []string `cbor:"1,keyasint"`
	Outputs [][]byte `cbor:"2,keyasint"`
}

// Adapter replays the CBOR files under Dir in sorted order.
type Adapter struct {
	Dir   string
	files []string
	index int
}

// New opens Dir and indexes its regular files in sorted order, without
// reading their contents yet.
func New(dir string) (*Adapter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cborsource: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return &Adapter{Dir: dir, files: files}, nil
}

// Intersect always starts from the first candidate (or Origin if none are
// given); a file-backed replay has no independent notion of "mutually
// known" points to negotiate.
func (a *Adapter) Intersect(ctx context.Context, candidates []chainevent.Point) (chainevent.Point, error) {
	if len(candidates) == 0 {
		return chainevent.Origin(), nil
	}
	return candidates[0], nil
}

// NearTip reports whether every file has already been read.
func (a *Adapter) NearTip(ctx context.Context, since chainevent.Point) (bool, error) {
	return a.index >= len(a.files), nil
}

// NextBatch decodes up to maxItems files starting at the adapter's cursor.
func (a *Adapter) NextBatch(ctx context.Context, since chainevent.Point, maxItems int) ([]chainevent.Event, bool, error) {
	var events []chainevent.Event
	for len(events) < maxItems && a.index < len(a.files) {
		ev, err := a.decode(a.files[a.index])
		if err != nil {
			return nil, false, err
		}
		a.index++
		events = append(events, ev)
	}
	return events, a.index < len(a.files), nil
}

// NextTip has nothing to stream once the file list is exhausted: it
// suspends until ctx is canceled, matching a replay source's lack of a
// live tail.
func (a *Adapter) NextTip(ctx context.Context, since chainevent.Point) (chainevent.Event, error) {
	<-ctx.Done()
	return chainevent.Event{}, ctx.Err()
}

// Close is a no-op: the adapter holds no open file handles between calls.
func (a *Adapter) Close() error { return nil }

func (a *Adapter) decode(path string) (chainevent.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return chainevent.Event{}, fmt.Errorf("cborsource: read %s: %w", path, err)
	}

	var wb wireBlock
	if err := cbor.Unmarshal(raw, &wb); err != nil {
		return chainevent.Event{}, fmt.Errorf("cborsource: decode %s: %w", path, err)
	}

	block := &chainevent.DecodedBlock{
		Era:    chainevent.Era(wb.Era),
		Slot:   wb.Slot,
		Hash:   wb.Hash,
		Height: wb.Height,
	}
	for _, tx := range wb.Transactions {
		block.Transactions = append(block.Transactions, chainevent.DecodedTx{
			Hash:    tx.Hash,
			Inputs:  tx.Inputs,
			Outputs: tx.Outputs,
		})
	}

	point := chainevent.NewPoint(wb.Slot, wb.Hash)
	rec := chainevent.NewDecodedRecord(block)

	if strings.Contains(strings.ToLower(filepath.Base(path)), "undo") {
		return chainevent.NewUndo(point, rec), nil
	}
	return chainevent.NewApply(point, rec), nil
}
