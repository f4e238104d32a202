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

// Package numeric holds the small slot-arithmetic and flexible-integer
// parsing helpers shared by the source adapters and configuration loader.
package numeric

import (
	"fmt"
	"strconv"
)

// AbsoluteDifference returns |x-y| without risking a uint64 underflow from
// a naive subtraction when the caller isn't sure which operand is larger.
func AbsoluteDifference(x, y uint64) uint64 {
	if x > y {
		return x - y
	}
	return y - x
}

// CeilDiv divides x by y rounding up; it returns 0 for y == 0 rather than
// panicking, since callers use it on config-derived epoch lengths.
func CeilDiv(x, y uint64) uint64 {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// ParseUint64 parses s as a decimal or 0x-prefixed hexadecimal integer.
// The empty string parses as zero.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// HexOrDecimal64 unmarshals from either a decimal or 0x-prefixed hex JSON
// string, for slot and epoch-length values that may arrive either way in a
// hand-edited TOML config.
type HexOrDecimal64 uint64

func (i *HexOrDecimal64) UnmarshalText(input []byte) error {
	n, ok := ParseUint64(string(input))
	if !ok {
		return fmt.Errorf("numeric: invalid hex or decimal integer %q", input)
	}
	*i = HexOrDecimal64(n)
	return nil
}

func (i HexOrDecimal64) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(i), 10)), nil
}
