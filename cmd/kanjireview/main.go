// Package main implements the kanjireview server and its admin commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/config"
	"github.com/japaniel/kanjireview/pkg/controller"
	"github.com/japaniel/kanjireview/pkg/db"
	"github.com/japaniel/kanjireview/pkg/logging"
	"github.com/japaniel/kanjireview/pkg/review"
	"github.com/japaniel/kanjireview/pkg/srs"
)

var version = "dev"

type rootOptions struct {
	configPath string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "kanjireview",
		Short: "Spaced-repetition kanji reviews with Telegram reminders",
		Long: `kanjireview schedules kanji reviews on a WaniKani-style SRS ladder,
serves them over HTTP and reminds you on Telegram when reviews pile up.

Settings come from an optional YAML file (--config) and KANJIREVIEW_*
environment variables, for example KANJIREVIEW_AUTH_JWT_SECRET.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to SQLite database (overrides database.path)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newLearnCmd(opts))
	root.AddCommand(newListCmd(opts))
	return root
}

// app holds the components every command needs.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *db.Store
	queue *review.Queue
	ctrl  *controller.Controller
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	store := db.NewStore(conn, logger)
	queue := review.NewQueue(store, logger)
	ctrl := controller.New(srs.NewWaniKani(), store, queue, review.NewIntroducer(store, logger), logger)

	return &app{cfg: cfg, log: logger, store: store, queue: queue, ctrl: ctrl}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
