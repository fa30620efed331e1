// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
)

var (
	chatWorkspace string
	chatSelect    string
	chatAgent     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session.

Type a message and press Enter to send it; the response streams in as it is
generated. Press Ctrl+C while a response is streaming to stop it, and Ctrl+D
to exit. Type /help for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatWorkspace, "workspace", "w", "", "workspace id (default: chat.default_workspace or the first workspace)")
	chatCmd.Flags().StringVarP(&chatSelect, "chat", "c", "", "chat id to open")
	chatCmd.Flags().BoolVar(&chatAgent, "agent", false, "start in agent mode")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.watchTokens(ctx)

	ws, err := a.resolveWorkspace(ctx, chatWorkspace)
	if err != nil {
		return err
	}
	ctrl := a.controller(ws, chatAgent || cfg.Chat.AgentMode)
	defer ctrl.Close()

	errOut := cmd.ErrOrStderr()
	unsubscribe := a.session.OnExpired(func(reason string) {
		fmt.Fprintln(errOut, WarningStyle.Render("Session expired: "+reason+". Run `rigrun-chat token set` and try again."))
	})
	defer unsubscribe()

	if err := ctrl.LoadChats(ctx); err != nil {
		return err
	}
	if chatSelect != "" {
		if err := ctrl.SelectChat(ctx, chatSelect); err != nil {
			return err
		}
	}

	r := newREPL(cmd.OutOrStdout(), errOut, ctrl, a)
	defer r.Close()
	return r.run(ctx)
}

// =============================================================================
// REPL
// =============================================================================

// repl is the interactive loop: liner for input, the controller for state.
type repl struct {
	out, errOut io.Writer
	ctrl        *chat.Controller
	app         *app
	md          *markdownRenderer
	line        *liner.State
	historyFile string
}

func newREPL(out, errOut io.Writer, ctrl *chat.Controller, a *app) *repl {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	r := &repl{
		out:         out,
		errOut:      errOut,
		ctrl:        ctrl,
		app:         a,
		md:          newMarkdownRenderer(a.cfg.UI.Markdown && IsStdoutTTY(), a.cfg.UI.WordWrap),
		line:        line,
		historyFile: historyFile,
	}
	line.SetCompleter(r.complete)
	return r
}

// Close saves history and restores the terminal.
func (r *repl) Close() {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	r.line.Close()
}

func (r *repl) run(ctx context.Context) error {
	r.banner()
	for {
		input, err := r.line.Prompt(r.prompt())
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			// Ctrl+C at the prompt clears the line
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return nil
		case err != nil:
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				r.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}
		r.send(ctx, input)
	}
}

func (r *repl) banner() {
	st := r.ctrl.Snapshot()
	fmt.Fprintln(r.out, TitleStyle.Render("rigrun-chat")+" "+DimStyle.Render("workspace "+st.WorkspaceID))
	if st.SelectedChat == "" {
		fmt.Fprintln(r.out, DimStyle.Render("No chat selected. Use /new to start one or /chats to list them."))
	} else {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Chat: %s (%d messages). /help for commands.", st.SelectedTitle(), len(st.Messages))))
	}
}

// prompt is plain text: liner measures it by bytes.
func (r *repl) prompt() string {
	st := r.ctrl.Snapshot()
	title := st.SelectedTitle()
	if title == "" {
		title = "no chat"
	}
	mode := ""
	if st.AgentMode {
		mode = " agent"
	}
	return fmt.Sprintf("[%s%s] > ", truncatePrompt(title), mode)
}

func truncatePrompt(title string) string {
	const max = 24
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max-3]) + "..."
}

func (r *repl) send(ctx context.Context, text string) {
	ex, err := r.ctrl.Send(ctx, text)
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.out, AssistantRoleStyle.Render(model.RoleAssistant.DisplayName()))
	followExchange(r.out, r.ctrl, ex, streamOptions{stopMarker: r.app.cfg.Chat.StopMarker})
	fmt.Fprintln(r.out)
}

func (r *repl) printError(err error) {
	switch {
	case errors.Is(err, session.ErrNoChat):
		fmt.Fprintln(r.errOut, WarningStyle.Render("No chat selected. Use /new or /use first."))
	case errors.Is(err, session.ErrStreaming):
		fmt.Fprintln(r.errOut, WarningStyle.Render("A response is still streaming."))
	case errors.Is(err, session.ErrEmptyMessage):
	default:
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Error:")+" "+errorMessage(err))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var slashCommands = []struct {
	name, args, help string
}{
	{"/chats", "", "list chats in this workspace"},
	{"/new", "[title]", "create a chat and switch to it"},
	{"/use", "<n|id>", "switch to a chat"},
	{"/delete", "<n|id>", "delete a chat"},
	{"/clear", "", "delete every message in the current chat"},
	{"/agent", "[on|off]", "toggle agent mode"},
	{"/history", "", "show the current chat"},
	{"/archive", "[n]", "show archived exchanges for the current chat"},
	{"/help", "", "show this help"},
	{"/quit", "", "exit"},
}

func (r *repl) complete(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, line) {
			out = append(out, c.name)
		}
	}
	return out
}

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		for _, c := range slashCommands {
			fmt.Fprintf(r.out, "  %-10s %-10s %s\n", c.name, c.args, DimStyle.Render(c.help))
		}
		fmt.Fprintln(r.out, DimStyle.Render("  Ctrl+C stops a streaming response, Ctrl+D exits."))

	case "/chats":
		if err := r.ctrl.LoadChats(ctx); err != nil {
			return false, err
		}
		st := r.ctrl.Snapshot()
		printChatList(r.out, st.Chats, st.SelectedChat)

	case "/new":
		created, err := r.ctrl.CreateChat(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Created")+" "+created.DisplayTitle())

	case "/use":
		target, err := resolveChatRef(r.ctrl.Snapshot().Chats, arg)
		if err != nil {
			return false, err
		}
		if err := r.ctrl.SelectChat(ctx, target.ID); err != nil {
			return false, err
		}
		st := r.ctrl.Snapshot()
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Switched to %s (%d messages).", target.DisplayTitle(), len(st.Messages))))

	case "/delete":
		target, err := resolveChatRef(r.ctrl.Snapshot().Chats, arg)
		if err != nil {
			return false, err
		}
		answer, err := r.line.Prompt(fmt.Sprintf("Delete %q? [y/N]: ", target.DisplayTitle()))
		if err != nil || !isYes(answer) {
			fmt.Fprintln(r.out, DimStyle.Render("Cancelled."))
			return false, nil
		}
		if err := r.ctrl.DeleteChat(ctx, target.ID); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Deleted")+" "+target.DisplayTitle())

	case "/clear":
		if err := r.ctrl.ClearChat(ctx, ""); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Chat cleared."))

	case "/agent":
		on, err := parseToggle(arg, r.ctrl.Snapshot().AgentMode)
		if err != nil {
			return false, err
		}
		if err := r.ctrl.SetAgentMode(on); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Agent mode "+onOff(on)+"."))

	case "/history":
		if err := r.ctrl.LoadMessages(ctx); err != nil {
			return false, err
		}
		printMessages(r.out, r.ctrl.Snapshot().Messages, r.md)

	case "/archive":
		if r.app.archive == nil {
			return false, errors.New("archive is disabled (archive.enabled = false)")
		}
		limit := 10
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return false, fmt.Errorf("invalid count %q", arg)
			}
			limit = n
		}
		exchanges, err := r.app.archive.ListExchanges(ctx, r.ctrl.Snapshot().SelectedChat, limit)
		if err != nil {
			return false, err
		}
		printExchanges(r.out, exchanges)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// resolveChatRef finds a chat by 1-based list position or by id.
func resolveChatRef(chats []model.Chat, ref string) (model.Chat, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Chat{}, errors.New("which chat? give a number from /chats or an id")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(chats) {
			return chats[n-1], nil
		}
	}
	for _, c := range chats {
		if c.ID == ref {
			return c, nil
		}
	}
	return model.Chat{}, fmt.Errorf("no chat %q (use /chats to list them)", ref)
}

// parseToggle interprets on/off arguments; an empty argument flips current.
func parseToggle(arg string, current bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "":
		return !current, nil
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return current, fmt.Errorf("expected on or off, got %q", arg)
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
