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

package commands

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/driveingest/cmd/driveingest/opts"
	"github.com/walteh/driveingest/pkg/evaluate"
	"github.com/walteh/driveingest/pkg/ingest"
	"github.com/walteh/driveingest/pkg/log"
	"github.com/walteh/driveingest/pkg/sink"
	"github.com/walteh/driveingest/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// NewRunCmd creates the run command
func NewRunCmd(o *opts.RootOpts) *cobra.Command {
	var (
		watch       bool
		interval    time.Duration
		concurrency int
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest every file waiting in the pending folder",
		Long: `Run lists the pending folder once and, for each file in it:
1. Downloads it into the download directory
2. Evaluates the local copy
3. Moves it to the processed or not-processed folder

Files that fail at any step stay in pending and are retried by the next run.
With --watch the run repeats every --interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.Config(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}

			client, err := o.NewClient(ctx, cfg)
			if err != nil {
				return errors.Errorf("creating client: %w", err)
			}

			ev, err := evaluate.FromSpec(cfg.EvaluatorSpec())
			if err != nil {
				return errors.Errorf("creating evaluator: %w", err)
			}

			journal, err := state.Open(ctx, cfg.StateFile)
			if err != nil {
				return errors.Errorf("opening state: %w", err)
			}

			pipeline, err := ingest.New(ingest.Options{
				DriveID:              cfg.Drive.ID,
				PendingFolderID:      cfg.Drive.PendingFolderID,
				ProcessedFolderID:    cfg.Drive.ProcessedFolderID,
				NotProcessedFolderID: cfg.Drive.NotProcessedFolderID,
				DownloadDirectory:    cfg.DownloadDirectory,
				Concurrency:          cfg.Concurrency,
				Client:               client,
				Sink:                 sink.NewFileSink(),
				Evaluator:            ev,
				Journal:              journal,
				Observer:             log.FromContext(ctx),
			})
			if err != nil {
				return errors.Errorf("creating pipeline: %w", err)
			}

			if watch {
				runner, err := ingest.NewRunner(pipeline, interval)
				if err != nil {
					return errors.Errorf("creating runner: %w", err)
				}
				return runner.Run(ctx)
			}

			report, err := pipeline.RunOnce(ctx)
			if err != nil {
				return errors.Errorf("running: %w", err)
			}
			if strict && report.Failed > 0 {
				return errors.Errorf("%d of %d items failed", report.Failed, report.Seen)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running on an interval")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "time between runs with --watch")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override the configured concurrency")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any item fails")

	return cmd
}
