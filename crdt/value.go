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

package crdt

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ValueKind tags which alternative a Value carries.
type ValueKind uint8

const (
	ValueString ValueKind = iota
	ValueInt128
	ValueBytes
	ValueJSON
)

// Value is the small sum type CRDT command parameters carry: a UTF-8
// string, a 128-bit signed integer (serialized as decimal), opaque CBOR
// bytes, or free-form JSON.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   *big.Int
	Bytes []byte
	JSON  json.RawMessage
}

// StringValue wraps a UTF-8 string value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// Int128Value wraps a 128-bit signed integer value.
func Int128Value(i *big.Int) Value { return Value{Kind: ValueInt128, Int: i} }

// BytesValue wraps an opaque byte-string value.
func BytesValue(b []byte) Value { return Value{Kind: ValueBytes, Bytes: b} }

// JSONValue wraps a free-form JSON value. The raw bytes are kept as-is so
// round-tripping through MarshalJSON/UnmarshalJSON is byte-stable.
func JSONValue(raw json.RawMessage) Value { return Value{Kind: ValueJSON, JSON: raw} }

// Equal reports whether v and other carry the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == other.Str
	case ValueInt128:
		return (v.Int == nil) == (other.Int == nil) && (v.Int == nil || v.Int.Cmp(other.Int) == 0)
	case ValueBytes:
		return string(v.Bytes) == string(other.Bytes)
	case ValueJSON:
		return string(v.JSON) == string(other.JSON)
	default:
		return false
	}
}

// MarshalJSON renders the value the way the CRDT command JSON codec
// expects a bare "value" field to look.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueInt128:
		if v.Int == nil {
			return json.Marshal("0")
		}
		return json.Marshal(v.Int.String())
	case ValueBytes:
		return json.Marshal(v.Bytes)
	case ValueJSON:
		if len(v.JSON) == 0 {
			return []byte("null"), nil
		}
		return v.JSON, nil
	default:
		return nil, fmt.Errorf("crdt: unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON accepts any JSON value and carries it as a JSON-tagged
// Value; it is the caller's responsibility to reinterpret it as string,
// int, or bytes where a specific command parameter requires it.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value{Kind: ValueJSON, JSON: append(json.RawMessage(nil), data...)}
	return nil
}
