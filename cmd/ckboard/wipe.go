package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/server"
	"github.com/sadmanca/ck-board/internal/store"
	"github.com/sadmanca/ck-board/internal/ui"
)

var wipeCmd = &cobra.Command{
	Use:     "wipe",
	GroupID: "board",
	Short:   "Remove every post from a board",
	Long: `Remove all posts from the board.

The wipe goes through the relay server when one is running, so every
removal is broadcast and connected sessions clear their canvases. With
no server reachable the database is wiped directly instead.
Board settings are left in place. This cannot be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("refusing to wipe board %q without --force", cfg.BoardID)
		}

		addr, _ := cmd.Flags().GetString("server")
		if addr == "" {
			addr = fmt.Sprintf("localhost:%d", cfg.Port)
		}

		logger := newLogger(cfg, "[wipe] ")

		dialCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		client, err := server.Dial(dialCtx, addr, logger)
		cancel()
		if err == nil {
			defer client.Close()

			removed, err := wipeViaServer(cmd.Context(), client, cfg.BoardID)
			if err != nil {
				return err
			}
			fmt.Printf("%s Wiped board %s (%d posts removed, broadcast to connected sessions)\n",
				ui.RenderPass("✓"), ui.RenderAccent(cfg.BoardID), removed)
			return nil
		}

		fmt.Printf("%s No relay server at %s, wiping the database directly\n", ui.RenderWarn("!"), addr)

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open board database: %w", err)
		}
		defer st.Close()

		posts, err := st.GetAllPosts(cmd.Context(), cfg.BoardID)
		if err != nil {
			return fmt.Errorf("failed to read posts: %w", err)
		}

		if err := st.DeleteAllPosts(cmd.Context(), cfg.BoardID); err != nil {
			return fmt.Errorf("failed to wipe board: %w", err)
		}

		fmt.Printf("%s Wiped board %s (%d posts removed)\n", ui.RenderPass("✓"), ui.RenderAccent(cfg.BoardID), len(posts))
		return nil
	},
}

// wipeViaServer wipes a board through a connected relay client and
// waits for the tombstone broadcasts to come back, so the removal is
// known to have reached the server before the connection closes.
// Returns the number of posts that were removed.
func wipeViaServer(ctx context.Context, client *server.Client, boardID string) (int, error) {
	posts, err := client.GetAllPosts(ctx, boardID)
	if err != nil {
		return 0, fmt.Errorf("failed to read posts: %w", err)
	}
	if len(posts) == 0 {
		return 0, nil
	}

	tombstones := make(chan struct{}, len(posts))
	client.SubscribeChanged(func(rec *board.PostRecord) {
		if rec.BoardID == boardID && rec.Removed {
			select {
			case tombstones <- struct{}{}:
			default:
			}
		}
	})

	if err := client.DeleteAllPosts(ctx, boardID); err != nil {
		return 0, fmt.Errorf("failed to wipe board: %w", err)
	}

	deadline := time.After(5 * time.Second)
	for seen := 0; seen < len(posts); seen++ {
		select {
		case <-tombstones:
		case <-deadline:
			return seen, fmt.Errorf("timed out waiting for %d of %d removals to broadcast", len(posts)-seen, len(posts))
		case <-ctx.Done():
			return seen, ctx.Err()
		}
	}
	return len(posts), nil
}

func init() {
	wipeCmd.Flags().BoolP("force", "f", false, "Confirm the wipe")
	wipeCmd.Flags().StringP("server", "s", "", "Relay server address (host:port)")
	rootCmd.AddCommand(wipeCmd)
}
