package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"dailysales/internal/backend"
	"dailysales/internal/cache"
	"dailysales/internal/chart"
	"dailysales/internal/cli"
	"dailysales/internal/config"
	apphttp "dailysales/internal/http"
	"dailysales/internal/ledger"
	"dailysales/internal/log"
	"dailysales/internal/session"
	"dailysales/internal/sheets"
	gsheet "dailysales/internal/sheets/google"
)

const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	port          string
	ledgerBackend string
	sqliteDSN     string
	logLevel      string
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web tracker",
		Example: `  dailysales serve --port 8081
  dailysales serve --ledger-backend sqlite --sqlite-dsn ./data/sales.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(fl *pflag.Flag) { changed[fl.Name] = true })
			return runServe(cmd.Context(), *cfgPath, f, changed)
		},
	}

	cmd.Flags().StringVar(&f.port, "port", "", "HTTP port (overrides PORT)")
	cmd.Flags().StringVar(&f.ledgerBackend, "ledger-backend", "", "ledger store: memory or sqlite")
	cmd.Flags().StringVar(&f.sqliteDSN, "sqlite-dsn", "", "SQLite database path or :memory:")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// apply lets explicitly set flags win over file and environment values.
func (f serveFlags) apply(changed map[string]bool) func(*config.Config) {
	return func(c *config.Config) {
		if changed["port"] {
			c.Port = f.port
		}
		if changed["ledger-backend"] {
			c.LedgerBackend = f.ledgerBackend
		}
		if changed["sqlite-dsn"] {
			c.SQLiteDSN = f.sqliteDSN
		}
		if changed["log-level"] {
			c.LogLevel = f.logLevel
		}
	}
}

func runServe(parent context.Context, cfgPath string, f serveFlags, changed map[string]bool) error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(cfgPath, f.apply(changed))
	if err != nil {
		return err
	}

	logger := cli.SetupLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to release ledger backend", log.FieldError, err)
		}
	}()

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger)}
	if be.Publisher != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(be.Publisher))
	}

	exporter, err := buildExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(session.Config{
		Secret:      secret,
		IdleTTL:     cfg.SessionTTL,
		MaxAge:      cfg.SessionMaxAge,
		MaxSessions: cfg.MaxSessions,
	}, session.StoreFactory(be.NewStore), logger, ledgerOpts...)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	defer sessions.Close()

	sweeper := cache.NewManager(cfg.SessionReapSchedule, logger)
	sweeper.Register("sessions", sessions.Registry())

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Sessions:           sessions,
		Exporter:           exporter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Chart:              chart.Options{AssetsHost: cfg.ChartAssetsHost},
		Checks:             readinessChecks(be.Checks),
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	logger.Info("Starting dailysales server",
		"port", cfg.Port,
		"ledger_backend", cfg.LedgerBackend,
		"amqp", be.Publisher != nil,
		"sheets", exporter != nil,
		log.FieldOperation, log.OpStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, shutdownTimeout) })
	g.Go(func() error { return sweeper.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}

// sessionSecret returns the configured cookie signing key or a random one.
// A random key means cookies do not survive a restart.
func sessionSecret(cfg *config.Config, logger *log.Logger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	logger.Warn("SESSION_SECRET not set, using a random key; sessions end on restart")
	return secret, nil
}

func readinessChecks(checks map[string]backend.CheckFunc) map[string]apphttp.CheckFunc {
	out := make(map[string]apphttp.CheckFunc, len(checks))
	for name, check := range checks {
		out[name] = apphttp.CheckFunc(check)
	}
	return out
}

func buildExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerExporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	exp, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets export: %w", err)
	}
	return exp, nil
}
