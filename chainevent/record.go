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

import "github.com/chainlayer/chainlayer/crdt"

// RecordKind tags which alternative a Record carries.
type RecordKind uint8

const (
	RecordRaw RecordKind = iota
	RecordEnriched
	RecordDecoded
	RecordCRDTCommands
	RecordSQLStatements
)

// ResolvedInputs maps an output reference ("txhash#index") to the
// transaction output it spends, so a reducer can inspect consumed inputs
// without separately tracking UTxO state.
type ResolvedInputs map[string]ResolvedOutput

// DecodedBlock is the canonical in-memory decoded form of a block. Its
// fields are intentionally minimal: the pipeline core does not validate
// consensus or compute ledger state, so it carries just enough for a
// reducer to inspect a block's transactions.
type DecodedBlock struct {
	Era          Era
	Slot         uint64
	Hash         []byte
	Height       uint64
	Transactions []DecodedTx
}

// DecodedTx is a decoded transaction within a DecodedBlock.
type DecodedTx struct {
	Hash    []byte
	Inputs  []string // output references, "txhash#index"
	Outputs [][]byte // raw CBOR of each produced output
}

// Record is the payload carried by an Apply or Undo ChainEvent. Exactly one
// of the fields indicated by Kind is meaningful; Record is a closed sum
// dispatched on Kind rather than via an interface, per the pipeline's
// tagged-variant design.
type Record struct {
	Kind RecordKind

	RawBlock []byte

	EnrichedBlock   []byte
	ResolvedInputs  ResolvedInputs
	EnrichedEra     Era

	Decoded *DecodedBlock

	Commands   []crdt.Command
	Statements []string
}

// NewRawRecord wraps raw block bytes.
func NewRawRecord(raw []byte) Record {
	return Record{Kind: RecordRaw, RawBlock: raw}
}

// NewEnrichedRecord wraps enriched block bytes plus resolved input context.
func NewEnrichedRecord(era Era, raw []byte, resolved ResolvedInputs) Record {
	return Record{Kind: RecordEnriched, EnrichedEra: era, EnrichedBlock: raw, ResolvedInputs: resolved}
}

// NewDecodedRecord wraps a canonical decoded block.
func NewDecodedRecord(b *DecodedBlock) Record {
	return Record{Kind: RecordDecoded, Decoded: b}
}

// NewCommandsRecord wraps a list of CRDT commands (Redis-typed storage).
func NewCommandsRecord(cmds []crdt.Command) Record {
	return Record{Kind: RecordCRDTCommands, Commands: cmds}
}

// NewStatementsRecord wraps a list of SQL statement strings (Postgres-typed storage).
func NewStatementsRecord(stmts []string) Record {
	return Record{Kind: RecordSQLStatements, Statements: stmts}
}

// Empty reports whether the record carries no mutation at all (an empty
// commands or statements list). Storage engines skip committing such
// records' mutation step but still advance the cursor.
func (r Record) Empty() bool {
	switch r.Kind {
	case RecordCRDTCommands:
		return len(r.Commands) == 0
	case RecordSQLStatements:
		return len(r.Statements) == 0
	default:
		return false
	}
}
