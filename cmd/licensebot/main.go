package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"licensekeys-bot/internal/config"
	"licensekeys-bot/internal/httpapi"
	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/ledger"
	"licensekeys-bot/internal/pool"
	"licensekeys-bot/internal/store"
	"licensekeys-bot/internal/telegram"

	"github.com/spf13/cobra"
)

var flags struct {
	config   string
	pool     string
	ledger   string
	db       string
	http     string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "licensebot",
	Short: "Hand out license keys from a Telegram chat",
	Long: `licensebot keeps a local pool of unused license keys, rebuilt from the
license export, and hands them out on request in Telegram.

Without a subcommand it starts the bot and the HTTP status endpoint.`,
	SilenceUsage: true,
	RunE:         runBot,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "YAML config file (or env LICENSEBOT_CONFIG)")
	pf.StringVar(&flags.pool, "pool", "", "local pool file (or env POOL_PATH)")
	pf.StringVar(&flags.ledger, "ledger", "", "license export file (or env LEDGER_PATH)")
	pf.StringVar(&flags.db, "db", "", "dispensation journal (or env DB_PATH)")
	pf.StringVar(&flags.http, "http", "", "HTTP listen address (or env HTTP_ADDR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (or env LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	journal *store.BBoltStore
	inv     *inventory.Service
}

// journalMode says how a command uses the bbolt journal. bbolt holds an
// exclusive file lock while open, so a running bot blocks every other open.
type journalMode int

const (
	journalNone     journalMode = iota // export and pool only
	journalOptional                    // used when it can be opened
	journalRequired
)

func openApp(cmd *cobra.Command, mode journalMode) (*app, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("pool") {
		cfg.PoolPath = flags.pool
	}
	if pf.Changed("ledger") {
		cfg.LedgerPath = flags.ledger
	}
	if pf.Changed("db") {
		cfg.DBPath = flags.db
	}
	if pf.Changed("http") {
		cfg.HTTPAddr = flags.http
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()

	a := &app{cfg: cfg, logger: logger}
	deps := inventory.Dependencies{
		Ledger: ledger.NewFile(cfg.LedgerPath, logger),
		Pool:   pool.NewFileStore(cfg.PoolPath, logger),
		Logger: logger,
	}
	if mode != journalNone {
		journal, err := store.OpenBBolt(cfg.DBPath)
		switch {
		case err == nil:
			a.journal = journal
			deps.Journal = journal
		case mode == journalOptional:
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: journal unavailable (is the bot running?): %v\n", err)
		default:
			return nil, fmt.Errorf("db open %s (stop the running bot first): %w", cfg.DBPath, err)
		}
	}
	a.inv = inventory.NewService(deps)
	return a, nil
}

func (a *app) Close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("db close", "error", err)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, journalRequired)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httpapi.New(a.inv).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server error", "error", err)
			stop()
		}
	}()

	bot, err := telegram.NewBot(a.cfg.BotToken, a.inv, telegram.Options{
		Prefix:  a.cfg.CommandPrefix,
		IsAdmin: a.cfg.IsAdmin,
		Logger:  a.logger,
	})
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	a.logger.Info("bot is ready", "username", bot.Username())

	if res, err := a.inv.Reconcile(); err != nil {
		a.logger.Warn("could not sync keys on startup", "error", err)
	} else {
		a.logger.Info("synced keys from export", "monthly", res.Monthly, "lifetime", res.Lifetime)
	}

	go func() {
		if err := bot.Run(ctx); err != nil {
			a.logger.Error("bot error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
