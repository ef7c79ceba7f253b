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
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/driveingest/cmd/driveingest/opts"
	"github.com/walteh/driveingest/pkg/log"
	"github.com/walteh/driveingest/pkg/remote/graph"
	"gitlab.com/tozd/go/errors"
)

// NewLsCmd creates the ls command
func NewLsCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List the children of a drive folder",
		Long: `Ls lists a folder of the configured drive. Without an argument it lists
drive.root_folder_id, or the drive root when that is not set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.Config(ctx)
			if err != nil {
				return err
			}

			folderID := cfg.Drive.RootFolderID
			if len(args) == 1 {
				folderID = args[0]
			}
			if folderID == "" {
				folderID = graph.RootID
			}

			client, err := o.NewClient(ctx, cfg)
			if err != nil {
				return errors.Errorf("creating client: %w", err)
			}

			items, err := client.ListChildren(ctx, cfg.Drive.ID, folderID)
			if err != nil {
				return errors.Errorf("listing %s: %w", folderID, err)
			}

			log.FromContext(ctx).Header("children of " + folderID)
			data := pterm.TableData{{"name", "id", "type", "size"}}
			for _, item := range items {
				kind, size := "file", strconv.FormatInt(item.Size, 10)
				if item.IsFolder {
					kind, size = "folder", ""
				}
				data = append(data, []string{item.Name, item.ID, kind, size})
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
