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

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// idleWait is how long a stage sleeps after an Idle schedule result before
// rescheduling.
const idleWait = 200 * time.Millisecond

// Worker is the three-operation contract every stage implements.
type Worker interface {
	// Bootstrap runs once before any work.
	Bootstrap(ctx context.Context) error
	// Schedule produces the next work item, or signals Idle/Done.
	Schedule(ctx context.Context) (ScheduleResult, error)
	// Execute performs one work item produced by Schedule.
	Execute(ctx context.Context, work any) error
	// Teardown runs once when Schedule signals Done, before the stage exits.
	Teardown(ctx context.Context) error
}

// retryUntil calls fn until it succeeds, a fatal error is returned, the
// policy's retry budget is exhausted, or ctx is canceled. A nil return from
// fn always wins immediately.
func retryUntil(ctx context.Context, policy RetryPolicy, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		if attempt >= policy.MaxRetries {
			return err
		}
		select {
		case <-time.After(policy.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run drives a single stage's endless loop: bootstrap under the bootstrap
// policy, then repeatedly schedule and execute under the work policy until
// Schedule signals Done (run teardown and return nil) or a fatal error
// terminates the stage.
func Run(ctx context.Context, name string, w Worker, policies StagePolicies, log *zap.Logger) error {
	if err := retryUntil(ctx, policies.Bootstrap, func() error { return w.Bootstrap(ctx) }); err != nil {
		return Fatal(err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := w.Schedule(ctx)
		if err != nil {
			if IsFatal(err) {
				return err
			}
			log.Warn("schedule failed, retrying", zap.String("stage", name), zap.Error(err))
			if err := sleepBackoff(ctx, policies.Work, 0); err != nil {
				return err
			}
			continue
		}

		switch res.Signal {
		case SignalIdle:
			if err := sleepBackoff(ctx, policies.Work, -1); err != nil {
				return err
			}
		case SignalDone:
			if err := retryUntil(ctx, policies.Teardown, func() error { return w.Teardown(ctx) }); err != nil {
				if !policies.Teardown.Dismissible {
					return Fatal(err)
				}
				log.Warn("teardown failed, dismissed", zap.String("stage", name), zap.Error(err))
			}
			return nil
		case SignalUnit:
			work := res.Work
			execErr := retryUntil(ctx, policies.Work, func() error { return w.Execute(ctx, work) })
			if execErr != nil {
				if IsFatal(execErr) {
					return execErr
				}
				if !policies.Work.Dismissible {
					return Fatal(execErr)
				}
				log.Warn("work item dismissed after exhausting retries", zap.String("stage", name), zap.Error(execErr))
			}
		}
	}
}

// sleepBackoff waits idleWait (attempt < 0, the Idle-signal case) or the
// policy's backoff for attempt, observing cancellation.
func sleepBackoff(ctx context.Context, policy RetryPolicy, attempt int) error {
	d := idleWait
	if attempt >= 0 {
		d = policy.Backoff(attempt)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
