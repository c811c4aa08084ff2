package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadmanca/ck-board/internal/scene"
	"github.com/sadmanca/ck-board/internal/server"
	"github.com/sadmanca/ck-board/internal/sync"
	"github.com/sadmanca/ck-board/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "board",
	Short:   "Join a board and mirror it in real time",
	Long: `Join a board as a headless session.

The session connects to a running relay server, loads the current
board contents into a local scene graph, and then applies every
broadcast change as it arrives. Useful for verifying that sessions
converge and for driving a board from scripts.

Example usage:
  ckboard watch                          # connect to localhost:8484
  ckboard watch --server 10.0.0.5:8484`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("server")
		if addr == "" {
			addr = fmt.Sprintf("localhost:%d", cfg.Port)
		}

		logger := newLogger(cfg, "[watch] ")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client, err := server.Dial(ctx, addr, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		graph := scene.NewGraph(cfg.CanvasWidth, cfg.CanvasHeight)

		engine, err := sync.New(sync.Config{
			BoardID:  cfg.BoardID,
			Username: cfg.Username,
			Store:    client,
			Graph:    graph,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create sync engine: %w", err)
		}

		if err := engine.Load(ctx); err != nil {
			return fmt.Errorf("failed to load board: %w", err)
		}

		fmt.Printf("Joined board %s on %s (%d posts)\n", ui.RenderAccent(cfg.BoardID), addr, len(graph.Objects()))
		fmt.Println("Press Ctrl+C to leave...")

		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("sync session failed: %w", err)
		}

		fmt.Println("\nLeft board")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringP("server", "s", "", "Relay server address (host:port)")
	rootCmd.AddCommand(watchCmd)
}
