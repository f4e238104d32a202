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

// RecordFn is a fallible 1-to-1 transform of a record.
type RecordFn func(Record) (Record, error)

// RecordToManyFn is a fallible 1-to-N transform of a record.
type RecordToManyFn func(Record) ([]Record, error)

// TryMapRecord applies fn to the record of an Apply/Undo event, preserving
// direction and point. Reset events, and events with no record, pass
// through unchanged.
func TryMapRecord(e Event, fn RecordFn) (Event, error) {
	if e.Direction == Reset || e.Record == nil {
		return e, nil
	}
	out, err := fn(*e.Record)
	if err != nil {
		return Event{}, err
	}
	return Event{Direction: e.Direction, Point: e.Point, Record: &out}, nil
}

// TryMapRecordToMany applies fn to the record of an Apply/Undo event,
// replicating the original point to each output event in order. Reset
// yields itself unchanged as the sole element.
func TryMapRecordToMany(e Event, fn RecordToManyFn) ([]Event, error) {
	if e.Direction == Reset || e.Record == nil {
		return []Event{e}, nil
	}
	recs, err := fn(*e.Record)
	if err != nil {
		return nil, err
	}
	out := make([]Event, len(recs))
	for i, r := range recs {
		rec := r
		out[i] = Event{Direction: e.Direction, Point: e.Point, Record: &rec}
	}
	return out, nil
}
