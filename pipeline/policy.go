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

package pipeline

import "time"

// RetryPolicy bounds how a stage retries a failing bootstrap, work item, or
// teardown step.
type RetryPolicy struct {
	MaxRetries    int
	BackoffUnit   time.Duration
	BackoffFactor float64
	MaxBackoff    time.Duration
	// Dismissible, when true, drops the failing item once MaxRetries is
	// exhausted instead of failing the stage fatally.
	Dismissible bool
}

// DefaultRetryPolicy matches the spec's recommended defaults: 20 retries,
// 1-second backoff unit, factor 2, 60-second cap, non-dismissible.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    20,
		BackoffUnit:   time.Second,
		BackoffFactor: 2,
		MaxBackoff:    60 * time.Second,
		Dismissible:   false,
	}
}

// Backoff computes min(unit * factor^attempt, max) for the given
// zero-based attempt number.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.BackoffUnit)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	if max := float64(p.MaxBackoff); p.MaxBackoff > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// StagePolicies bundles the three retry policies a stage applies to its
// bootstrap, work, and teardown steps. They are typically equal.
type StagePolicies struct {
	Bootstrap RetryPolicy
	Work      RetryPolicy
	Teardown  RetryPolicy
}

// DefaultStagePolicies returns the same default policy for all three steps.
func DefaultStagePolicies() StagePolicies {
	d := DefaultRetryPolicy()
	return StagePolicies{Bootstrap: d, Work: d, Teardown: d}
}
