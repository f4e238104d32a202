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

// Package pipeline implements the bounded-buffer, supervised-worker runtime
// shared by the source, reducer, and storage stages.
package pipeline

import (
	"errors"
	"fmt"
)

// Signal is what Schedule returns alongside a possible work item.
type Signal int

const (
	// SignalUnit means a work item is ready for Execute.
	SignalUnit Signal = iota
	// SignalIdle means no work is ready; sleep briefly and reschedule.
	SignalIdle
	// SignalDone means the stage should run its teardown path and stop.
	SignalDone
)

// ScheduleResult is the outcome of one Schedule call.
type ScheduleResult struct {
	Signal Signal
	Work   any
}

// Unit wraps a ready work item.
func Unit(work any) ScheduleResult { return ScheduleResult{Signal: SignalUnit, Work: work} }

// Idle signals no work is currently ready.
func Idle() ScheduleResult { return ScheduleResult{Signal: SignalIdle} }

// Done signals clean shutdown should begin.
func Done() ScheduleResult { return ScheduleResult{Signal: SignalDone} }

// FatalError wraps an error that must terminate the owning stage rather
// than be retried. Any other error returned by a Worker's methods is
// treated as retryable under the relevant RetryPolicy.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", f.Err)
}

func (f *FatalError) Unwrap() error {
	return f.Err
}

// Fatal wraps err as a FatalError. Fatal(nil) returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err (or something it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
