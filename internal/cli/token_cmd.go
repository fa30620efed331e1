// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/auth"
)

var tokenCheck bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the bearer token",
	Long: `Manage the bearer token sent with every request.

The token is stored in ~/.rigrun-chat/token with owner-only permissions.
RIGCHAT_TOKEN, when set, takes precedence over the file.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [TOKEN]",
	Short: "Store a token (prompts when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenSet,
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runTokenClear,
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the token comes from",
	Args:  cobra.NoArgs,
	RunE:  runTokenStatus,
}

func init() {
	tokenStatusCmd.Flags().BoolVar(&tokenCheck, "check", false, "verify the token against the server")

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenCmd.AddCommand(tokenStatusCmd)
	rootCmd.AddCommand(tokenCmd)
}

func tokenFile() (*auth.FileStore, error) {
	path, err := cfg.TokenPath()
	if err != nil {
		return nil, err
	}
	return auth.NewFileStore(path), nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	store, err := tokenFile()
	if err != nil {
		return err
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Token: ")
		if err != nil {
			return err
		}
	}
	if err := store.SetToken(token); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, SuccessStyle.Render("Token saved")+" "+DimStyle.Render(store.Path()))
	if cfg.Auth.EnvToken != "" {
		fmt.Fprintln(out, WarningStyle.Render("RIGCHAT_TOKEN is set and takes precedence over the file."))
	}
	return nil
}

func runTokenClear(cmd *cobra.Command, args []string) error {
	store, err := tokenFile()
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Token removed"))
	return nil
}

func runTokenStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := tokenFile()
	if err != nil {
		return err
	}

	source := "none"
	var token string
	switch {
	case cfg.Auth.EnvToken != "":
		source, token = "RIGCHAT_TOKEN", cfg.Auth.EnvToken
	default:
		token, err = store.Token()
		switch {
		case err == nil:
			source = "file"
		case errors.Is(err, auth.ErrNoToken):
		default:
			return err
		}
	}

	fmt.Fprintln(out, RenderLabel("Source", source))
	fmt.Fprintln(out, RenderLabel("Token file", store.Path()))
	if token != "" {
		fmt.Fprintln(out, RenderLabel("Token", maskToken(token)))
	}

	if !tokenCheck {
		return nil
	}
	if token == "" {
		return auth.ErrNoToken
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.dir.ListWorkspaces(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(out, RenderLabel("Server", SuccessStyle.Render("accepted")))
	return nil
}

// maskToken shows only the first and last few characters.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
