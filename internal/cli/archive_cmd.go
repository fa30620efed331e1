// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	archiveChat  string
	archiveLimit int
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Show archived exchanges",
	Long: `Show exchanges recorded in the local transcript archive, oldest first.

Every finished response is archived with how it ended (completed, cancelled
or errored). Disable recording with archive.enabled = false.`,
	Args: cobra.NoArgs,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveChat, "chat", "c", "", "only this chat")
	archiveCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 20, "max exchanges")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.archive == nil {
		return errors.New("archive is disabled (archive.enabled = false)")
	}
	exchanges, err := a.archive.ListExchanges(cmd.Context(), archiveChat, archiveLimit)
	if err != nil {
		return err
	}
	printExchanges(cmd.OutOrStdout(), exchanges)
	return nil
}
