package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/alertstore"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/config"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/db"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/server"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/version"
)

// ServeCmd starts the streaming fusion server.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the WebSocket streaming fusion server",
	Long: `Launch the streaming fusion server.

Each WebSocket connection on /ws is an independent fusion stream with its
own drift-detection state. Drift alerts are persisted to SQLite unless
--no-persist is set. Edits to the project config file are picked up
without a restart.`,
	RunE: runServe,
}

var (
	servePort      int
	serveDBPath    string
	serveNoPersist bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoPersist, "no-persist", false, "Disable drift-alert persistence")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	var (
		store    *alertstore.Store
		database *sql.DB
	)
	dbPath := cfg.Database.Path
	if serveDBPath != "" {
		dbPath = serveDBPath
	}
	if !serveNoPersist {
		database, err = db.OpenWithMigrations(dbPath, logger.Logger)
		if err != nil {
			return errors.Wrap(err, "failed to open database")
		}
		defer database.Close()
		store = alertstore.NewStore(database)
	}

	srv, err := server.New(cfg, store)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	watcher := watchConfig(srv)
	if watcher != nil {
		defer watcher.Stop()
	}

	printServeBanner(cfg, dbPath)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownDone <- srv.Stop(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// watchConfig wires a file watcher to the running server so parameter
// changes apply to new streams without a restart. Returns nil when no
// config file exists to watch.
func watchConfig(srv *server.FusionServer) *config.ConfigWatcher {
	var watchPath string
	for _, path := range config.ConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			watchPath = path // last existing file wins, matching merge order
		}
	}
	if watchPath == "" {
		return nil
	}

	watcher, err := config.NewConfigWatcher(watchPath)
	if err != nil {
		logger.Warnw("Config watching disabled", "error", err)
		return nil
	}
	watcher.OnReload(func(cfg *config.Config) error {
		return srv.ApplyConfig(cfg)
	})
	watcher.Start()
	logger.Infow("Watching config file for changes", "path", watchPath)
	return watcher
}

func printServeBanner(cfg *config.Config, dbPath string) {
	info := version.Get()

	pterm.DefaultBox.WithTitle("lexkernel").Println(fmt.Sprintf(
		"Version:  %s (commit %s)\nPort:     %d\nMethod:   %s (alpha %.2f)\nDrift:    threshold %.2f, window %d",
		info.Version, info.Short(),
		cfg.Server.Port,
		cfg.Fusion.Method, cfg.Fusion.Alpha,
		cfg.Temporal.DriftThreshold, cfg.Hybrid.DriftWindow,
	))

	if serveNoPersist {
		pterm.Warning.Println("Drift-alert persistence disabled")
	} else {
		pterm.Info.Printf("Persisting drift alerts to %s\n", dbPath)
	}
	pterm.Info.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", cfg.Server.Port)
	pterm.Info.Println("Press Ctrl+C to stop")
}
