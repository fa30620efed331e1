// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/export"
	"github.com/jeranaias/rigrun-chat/internal/model"
)

var (
	exportWorkspace string
	exportFormat    string
	exportOutput    string
	exportStdout    bool
	exportNoMeta    bool
)

var exportCmd = &cobra.Command{
	Use:   "export CHAT_ID",
	Short: "Export a chat transcript to Markdown or JSON",
	Long: `Download a chat's messages and write them to a file.

The chat title is looked up in the workspace so the file can be named after it.`,
	Example: `  rigrun-chat export 3f2a --format json --output ./transcripts
  rigrun-chat export 3f2a --stdout > chat.md`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportWorkspace, "workspace", "w", "", "workspace id used to look up the chat title")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "markdown or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "write to standard output instead of a file")
	exportCmd.Flags().BoolVar(&exportNoMeta, "no-metadata", false, "omit the Markdown frontmatter")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts := export.DefaultOptions()
	opts.OutputDir = exportOutput
	opts.IncludeMetadata = !exportNoMeta

	exporter, err := export.ForFormat(exportFormat, opts)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	t := export.Transcript{Chat: model.Chat{ID: args[0]}}
	if ws, err := a.resolveWorkspace(ctx, exportWorkspace); err == nil {
		chats, err := a.dir.ListChats(ctx, ws)
		if err != nil {
			return err
		}
		for _, c := range chats {
			if c.ID == args[0] {
				t.Chat = c
				break
			}
		}
	} else {
		a.logger.Debug("chat title lookup skipped", "error", err)
	}

	t.Messages, err = a.dir.LoadMessages(ctx, args[0])
	if err != nil {
		return err
	}

	if exportStdout {
		data, err := exporter.Export(t)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	path, err := export.ExportToFile(t, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported")+" "+path)
	return nil
}
