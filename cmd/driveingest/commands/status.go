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
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/driveingest/cmd/driveingest/opts"
	"github.com/walteh/driveingest/pkg/ingest"
	"github.com/walteh/driveingest/pkg/log"
	"github.com/walteh/driveingest/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// NewStatusCmd creates the status command
func NewStatusCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run and items still waiting",
		Long: `Status reads the local state file only; it does not contact the drive.
It will:
1. Summarize the most recent run
2. List items whose last attempt left them in pending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			cfg, err := o.Config(ctx)
			if err != nil {
				return err
			}

			store, err := state.Open(ctx, cfg.StateFile)
			if err != nil {
				return errors.Errorf("opening state: %w", err)
			}
			snap := store.Snapshot()

			last, ok := snap.LastRun()
			if !ok {
				logger.Info("no runs recorded yet")
				return nil
			}

			logger.Header("status of " + cfg.Drive.PendingFolderID)
			if last.Aborted {
				logger.Errorf("last run %s was aborted before every item was handled", last.RunID)
			}
			logger.Infof("last run %s finished %s", last.RunID, last.FinishedAt.Local().Format("2006-01-02 15:04:05"))
			summary, err := log.RenderSummary(&ingest.RunReport{
				Seen:         last.Seen,
				Downloaded:   last.Downloaded,
				Processed:    last.Processed,
				NotProcessed: last.NotProcessed,
				Failed:       last.Failed,
				Skipped:      last.Skipped,
			})
			if err != nil {
				return errors.Errorf("rendering summary: %w", err)
			}
			fmt.Fprintln(o.Console, summary)
			logger.LogNewline()

			unsettled := snap.Unsettled()
			if len(unsettled) == 0 {
				logger.Success("nothing left in pending")
				return nil
			}

			logger.Warningf("%d items still pending", len(unsettled))
			data := pterm.TableData{{"name", "id", "attempts", "last failure"}}
			for _, rec := range unsettled {
				failure := ""
				if rec.LastFailure != nil {
					failure = fmt.Sprintf("%s/%s: %s", rec.LastFailure.Stage, rec.LastFailure.Kind, rec.LastFailure.Message)
				}
				data = append(data, []string{rec.Name, rec.ItemID, fmt.Sprint(rec.Attempts), failure})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return errors.Errorf("rendering table: %w", err)
			}
			fmt.Fprintln(o.Console, table)
			return nil
		},
	}

	return cmd
}
