// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/util"
)

var (
	chatsWorkspace string
	chatsYes       bool
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List and manage chats",
	Long: `List and manage the chats of a workspace.

Subcommands:
  list    List chats, newest first (default)
  new     Create a chat
  delete  Delete a chat and its messages
  clear   Delete every message of a chat`,
	Args: cobra.NoArgs,
	RunE: runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsNewCmd = &cobra.Command{
	Use:   "new [TITLE]",
	Short: "Create a chat",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChatsNew,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete CHAT_ID",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

var chatsClearCmd = &cobra.Command{
	Use:   "clear CHAT_ID",
	Short: "Delete every message of a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsClear,
}

var messagesCmd = &cobra.Command{
	Use:   "messages CHAT_ID",
	Short: "Print a chat's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessages,
}

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List workspaces",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaces,
}

func init() {
	chatsCmd.PersistentFlags().StringVarP(&chatsWorkspace, "workspace", "w", "", "workspace id")
	chatsDeleteCmd.Flags().BoolVarP(&chatsYes, "yes", "y", false, "do not ask for confirmation")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsNewCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
	chatsCmd.AddCommand(chatsClearCmd)

	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(workspacesCmd)
}

func runChatsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ws, err := a.resolveWorkspace(ctx, chatsWorkspace)
	if err != nil {
		return err
	}
	chats, err := a.dir.ListChats(ctx, ws)
	if err != nil {
		return err
	}
	printChatList(cmd.OutOrStdout(), chats, "")
	return nil
}

func runChatsNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ws, err := a.resolveWorkspace(ctx, chatsWorkspace)
	if err != nil {
		return err
	}
	title := cfg.Chat.NewChatTitle
	if len(args) == 1 && args[0] != "" {
		title = args[0]
	}
	created, err := a.dir.CreateChat(ctx, ws, title)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Created")+" "+created.DisplayTitle()+" "+DimStyle.Render(created.ID))
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	if !chatsYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete chat %s and all its messages?", args[0])) {
		fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("Cancelled."))
		return nil
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.dir.DeleteChat(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Deleted")+" "+args[0])
	return nil
}

func runChatsClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.dir.ClearChatMessages(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Cleared")+" "+args[0])
	return nil
}

func runMessages(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	msgs, err := a.dir.LoadMessages(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	md := newMarkdownRenderer(cfg.UI.Markdown && IsStdoutTTY(), cfg.UI.WordWrap)
	printMessages(cmd.OutOrStdout(), msgs, md)
	return nil
}

func runWorkspaces(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	workspaces, err := a.dir.ListWorkspaces(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(workspaces) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No workspaces."))
		return nil
	}
	for _, w := range workspaces {
		marker := " "
		if w.ID == cfg.Chat.DefaultWorkspace {
			marker = SelectedStyle.Render("*")
		}
		fmt.Fprintf(out, "%s %s  %s\n", marker, util.PadWidth(util.TruncateWidth(w.Name, titleWidth), titleWidth), DimStyle.Render(w.ID))
	}
	return nil
}
