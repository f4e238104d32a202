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
	"strconv"
)

// wireCommand is the on-the-wire shape of a single CRDT command JSON
// element. delta and timestamp are json.RawMessage so either a JSON number
// or a strictly-parsed numeric string is accepted, per the codec's
// documented permissive behavior.
type wireCommand struct {
	Command   string          `json:"command"`
	Set       string          `json:"set"`
	Key       string          `json:"key"`
	Member    string          `json:"member"`
	Delta     json.RawMessage `json:"delta,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

var wireKindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// ParseCommands decodes a JSON array of CRDT command elements. A malformed
// element is reported as an error so the caller can treat it as a
// retryable reduce-step failure.
func ParseCommands(data []byte) ([]Command, error) {
	var wire []wireCommand
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("crdt: decode command array: %w", err)
	}
	out := make([]Command, len(wire))
	for i, w := range wire {
		c, err := w.toCommand()
		if err != nil {
			return nil, fmt.Errorf("crdt: command %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// MarshalCommands renders a command list back to its JSON wire form.
func MarshalCommands(cmds []Command) ([]byte, error) {
	wire := make([]wireCommand, len(cmds))
	for i, c := range cmds {
		w, err := fromCommand(c)
		if err != nil {
			return nil, fmt.Errorf("crdt: command %d: %w", i, err)
		}
		wire[i] = w
	}
	return json.Marshal(wire)
}

func (w wireCommand) toCommand() (Command, error) {
	kind, ok := wireKindByName[w.Command]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", w.Command)
	}
	c := Command{Kind: kind, Set: w.Set, Key: w.Key, Member: w.Member}

	needsDelta := kind == SortedSetAdd || kind == SortedSetRemove || kind == PNCounter || kind == HashCounter
	if needsDelta {
		d, err := parseFlexInt(w.Delta)
		if err != nil {
			return Command{}, fmt.Errorf("delta: %w", err)
		}
		c.Delta = d
	}

	if kind == LastWriteWins {
		ts, err := parseFlexInt(w.Timestamp)
		if err != nil {
			return Command{}, fmt.Errorf("timestamp: %w", err)
		}
		c.Timestamp = ts
	}

	needsValue := kind == LastWriteWins || kind == AnyWriteWins || kind == HashSetValue
	if needsValue {
		if len(w.Value) == 0 {
			return Command{}, fmt.Errorf("missing value")
		}
		c.Value = JSONValue(append(json.RawMessage(nil), w.Value...))
	}

	return c, nil
}

func fromCommand(c Command) (wireCommand, error) {
	name, ok := kindNames[c.Kind]
	if !ok {
		return wireCommand{}, fmt.Errorf("unknown command kind %d", c.Kind)
	}
	w := wireCommand{Command: name, Set: c.Set, Key: c.Key, Member: c.Member}

	switch c.Kind {
	case SortedSetAdd, SortedSetRemove, PNCounter, HashCounter:
		w.Delta = json.RawMessage(strconv.FormatInt(c.Delta, 10))
	}
	if c.Kind == LastWriteWins {
		w.Timestamp = json.RawMessage(strconv.FormatInt(c.Timestamp, 10))
	}
	switch c.Kind {
	case LastWriteWins, AnyWriteWins, HashSetValue:
		raw, err := c.Value.MarshalJSON()
		if err != nil {
			return wireCommand{}, err
		}
		w.Value = raw
	}
	return w, nil
}

// parseFlexInt accepts either a bare JSON number or a quoted numeric
// string, parsed strictly as a base-10 signed 64-bit integer.
func parseFlexInt(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("invalid numeric value %q: %w", raw, err)
	}
	return n, nil
}
