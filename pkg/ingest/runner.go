// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// RunOncer is satisfied by *Pipeline
type RunOncer interface {
	RunOnce(ctx context.Context) (*RunReport, error)
}

// 🏃 Runner repeats a pipeline on a fixed interval until ctx is done
type Runner struct {
	pipeline RunOncer
	interval time.Duration
}

// 🏗️ NewRunner creates a new runner
func NewRunner(pipeline RunOncer, interval time.Duration) (*Runner, error) {
	if pipeline == nil {
		return nil, errors.Errorf("pipeline is required")
	}
	if interval <= 0 {
		return nil, errors.Errorf("interval must be positive, got %s", interval)
	}
	return &Runner{pipeline: pipeline, interval: interval}, nil
}

// 🏃 Run executes runs back to back, sleeping interval between them. Failed
// runs are logged and retried on the next tick, except rejected credentials,
// which stop the loop. Cancelling ctx ends the loop with a nil error.
func (r *Runner) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	for {
		report, err := r.pipeline.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case errors.Is(err, remote.ErrUnauthorized):
			return errors.Errorf("stopping watch: %w", err)
		case err != nil:
			logger.Warn().Err(err).Msg("run failed, retrying next interval")
		case report != nil:
			logger.Debug().Str("run_id", report.RunID).Stringer("report", report).Msg("run complete")
		}

		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
