// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/stream"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

var (
	sendWorkspace string
	sendChat      string
	sendAgent     bool
	sendNew       bool
	sendMarkdown  bool
)

var sendCmd = &cobra.Command{
	Use:   "send [flags] MESSAGE...",
	Short: "Send one message and stream the answer",
	Long: `Send one message to a chat and stream the answer to stdout.

Without --chat the first chat of the workspace is used; --new creates a chat
first. Ctrl+C stops the response and keeps what arrived.

Examples:
  rigrun-chat send --chat 3f2a "summarize the last answer"
  rigrun-chat send --new --agent "plan a migration to Postgres 16"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendWorkspace, "workspace", "w", "", "workspace id")
	sendCmd.Flags().StringVarP(&sendChat, "chat", "c", "", "chat id")
	sendCmd.Flags().BoolVar(&sendAgent, "agent", false, "use the agent endpoint")
	sendCmd.Flags().BoolVar(&sendNew, "new", false, "create a new chat for this message")
	sendCmd.Flags().BoolVar(&sendMarkdown, "markdown", false, "wait for the full answer and render it as markdown")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := strings.Join(args, " ")

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ws, err := a.resolveWorkspace(ctx, sendWorkspace)
	if err != nil {
		return err
	}
	ctrl := a.controller(ws, sendAgent || cfg.Chat.AgentMode)
	defer ctrl.Close()

	switch {
	case sendNew:
		if _, err := ctrl.CreateChat(ctx, ""); err != nil {
			return err
		}
	case sendChat != "":
		if err := ctrl.SelectChat(ctx, sendChat); err != nil {
			return err
		}
	default:
		if err := ctrl.LoadChats(ctx); err != nil {
			return err
		}
		if ctrl.Snapshot().SelectedChat == "" {
			return errors.New("workspace has no chats; use --new to create one")
		}
	}

	ex, err := ctrl.Send(ctx, text)
	if err != nil {
		return err
	}

	opts := streamOptions{stopMarker: cfg.Chat.StopMarker}
	if sendMarkdown {
		opts.md = newMarkdownRenderer(true, cfg.UI.WordWrap)
	}
	res := followExchange(cmd.OutOrStdout(), ctrl, ex, opts)
	if res.Phase == stream.PhaseErrored {
		if transport.IsAuth(res.Err) {
			return res.Err
		}
		return &reportedError{err: fmt.Errorf("response failed: %w", res.Err)}
	}
	return nil
}
