package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadmanca/ck-board/internal/server"
	"github.com/sadmanca/ck-board/internal/store"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Start the board relay server",
	Long: `Start the relay server that owns the board database.

The server stores posts and board settings in a local SQLite database
and broadcasts every change to connected WebSocket clients:

  ws://localhost:<port>/ws      live change stream and op intake
  http://localhost:<port>/posts board snapshot for initial load
  http://localhost:<port>/board board settings snapshot
  http://localhost:<port>/health

With --settings, the server watches a yaml file of board settings
(name, move permission, background) and applies it on every save.

Example usage:
  ckboard serve                         # default port 8484
  ckboard serve --port 9000
  ckboard serve --settings board.yaml   # hot-reload board settings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if settings, _ := cmd.Flags().GetString("settings"); settings != "" {
			cfg.SettingsFile = settings
		}

		logger := newLogger(cfg, "[server] ")

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open board database: %w", err)
		}
		defer st.Close()

		srv := server.New(st, &server.Config{
			Port:   cfg.Port,
			Logger: logger,
		})

		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		var settingsWatcher *server.SettingsWatcher
		if cfg.SettingsFile != "" {
			settingsWatcher, err = server.NewSettingsWatcher(cfg.SettingsFile, cfg.BoardID, st, logger)
			if err != nil {
				srv.Stop()
				return fmt.Errorf("failed to create settings watcher: %w", err)
			}
			if err := settingsWatcher.Start(cmd.Context()); err != nil {
				srv.Stop()
				return fmt.Errorf("failed to start settings watcher: %w", err)
			}
		}

		fmt.Printf("Board server started on http://localhost:%d\n", cfg.Port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", cfg.Port)
		fmt.Printf("Database: %s\n", cfg.DBPath)
		if cfg.SettingsFile != "" {
			fmt.Printf("Watching settings: %s\n", cfg.SettingsFile)
		}
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down board server...")
		if settingsWatcher != nil {
			if err := settingsWatcher.Stop(); err != nil {
				logger.Printf("Error stopping settings watcher: %v", err)
			}
		}
		if err := srv.Stop(); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}

		fmt.Println("Board server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8484, "Port to listen on")
	serveCmd.Flags().String("settings", "", "Board settings yaml file to watch")
	rootCmd.AddCommand(serveCmd)
}
