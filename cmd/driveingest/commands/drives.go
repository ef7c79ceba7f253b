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
	"github.com/walteh/driveingest/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewDrivesCmd creates the drives command
func NewDrivesCmd(o *opts.RootOpts) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "drives",
		Short: "List the drives visible to the configured credentials",
		Long: `Drives lists the drives of a user, which is handy for finding the drive id
to put in the config. App-only credentials need --user (or drive.user_id).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.Config(ctx)
			if err != nil {
				return err
			}
			if userID == "" {
				userID = cfg.Drive.UserID
			}

			client, err := o.NewClient(ctx, cfg)
			if err != nil {
				return errors.Errorf("creating client: %w", err)
			}

			drives, err := client.ListDrives(ctx, userID)
			if err != nil {
				return errors.Errorf("listing drives: %w", err)
			}

			owner := userID
			if owner == "" {
				owner = "me"
			}
			log.FromContext(ctx).Header("drives of " + owner)
			data := pterm.TableData{{"name", "id", "type", "url"}}
			for _, d := range drives {
				data = append(data, []string{d.Name, d.ID, d.DriveType, d.WebURL})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return errors.Errorf("rendering table: %w", err)
			}
			fmt.Fprintln(o.Console, table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id or principal name (defaults to drive.user_id)")

	return cmd
}
