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
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// StageHandle pairs a named worker with the policies it runs under.
type StageHandle struct {
	Name     string
	Worker   Worker
	Policies StagePolicies
}

// Supervisor owns one handle per stage and blocks until any stage
// terminates, then tears the rest down by canceling their shared context.
type Supervisor struct {
	stages []StageHandle
	log    *zap.Logger
}

// NewSupervisor builds a Supervisor over the given stages, run in the order
// given (conventionally source, reducer, storage).
func NewSupervisor(log *zap.Logger, stages ...StageHandle) *Supervisor {
	return &Supervisor{stages: stages, log: log}
}

// Run starts every stage and blocks until one terminates: a Done signal
// and clean teardown from the storage stage, any fatal error, or ctx being
// canceled. The first non-nil, non-clean-shutdown error is returned; a
// clean finalize via any stage returning nil is reported as nil.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.stages))

	for _, h := range s.stages {
		h := h
		go func() {
			err := Run(ctx, h.Name, h.Worker, h.Policies, s.log)
			results <- result{name: h.Name, err: err}
		}()
	}

	var firstErr error
	for range s.stages {
		r := <-results
		if r.err != nil && firstErr == nil && !errors.Is(r.err, context.Canceled) {
			firstErr = fmt.Errorf("stage %q: %w", r.name, r.err)
		}
		// Any stage terminating, clean or not, triggers teardown of the rest.
		cancel()
	}
	return firstErr
}
