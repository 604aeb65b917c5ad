package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"dailysales/internal/cli"
	"dailysales/internal/config"
	gsheet "dailysales/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

type sheetsAuthFlags struct {
	port      string
	tokenFile string
}

func newSheetsAuthCmd(cfgPath *string) *cobra.Command {
	var f sheetsAuthFlags

	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets export with a user account",
		Long: "Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_FILE or " +
			"GOOGLE_OAUTH_CLIENT_JSON and saves the token for serve and worker. The client " +
			"must allow http://localhost:<port>/callback as a redirect URI.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheetsAuth(cmd.Context(), *cfgPath, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.port, "port", "8085", "local port for the OAuth redirect")
	cmd.Flags().StringVar(&f.tokenFile, "token-file", "", "where to save the token (default GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	return cmd
}

func runSheetsAuth(parent context.Context, cfgPath string, f sheetsAuthFlags, out io.Writer) error {
	cli.LoadEnvFile()

	// the token does not exist yet, so full validation would reject the config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if !cfg.HasOAuthClient() {
		return errors.New("set GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON")
	}

	tokenFile := f.tokenFile
	if tokenFile == "" {
		tokenFile = cfg.GoogleOAuthTokenFile
	}
	if tokenFile == "" {
		tokenFile = gsheet.DefaultTokenFile
	}

	oc, err := gsheet.OAuthConfig(gsheet.Config{
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
	})
	if err != nil {
		return err
	}

	logger := cli.SetupLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, authTimeout)
	defer cancelTimeout()

	tok, err := gsheet.Authorize(ctx, oc, f.port, out)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("authorization timed out")
	}
	if err != nil {
		return err
	}
	if err := gsheet.SaveToken(tokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved token to %s\n", tokenFile)
	return nil
}
