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

package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/driveingest/cmd/driveingest/commands"
	"github.com/walteh/driveingest/cmd/driveingest/opts"
	"github.com/walteh/driveingest/pkg/log"
)

// newRootCmd builds the command tree around shared options
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "driveingest",
		Short: "Move files out of a drive's pending folder once they are handled",
		Long: `driveingest downloads every file waiting in a OneDrive or SharePoint
pending folder, evaluates the local copy, and moves the remote file into a
processed or not-processed folder. Files that fail stay pending for the next run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(log.NewContext(cmd.Context(), o.Logger()))
			return nil
		},
	}

	addRootFlags(rootCmd, o)

	rootCmd.AddCommand(
		commands.NewRunCmd(o),
		commands.NewStatusCmd(o),
		commands.NewLsCmd(o),
		commands.NewDrivesCmd(o),
		newVersionCmd(o),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", "", "config file path (default: search the working directory)")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
}
