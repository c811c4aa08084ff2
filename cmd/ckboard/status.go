package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadmanca/ck-board/internal/store"
	"github.com/sadmanca/ck-board/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "board",
	Short:   "Show board database status",
	Long: `Display the stored state of a board.

Reads the board database directly; the relay server does not need to
be running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open board database: %w", err)
		}
		defer st.Close()

		posts, err := st.GetAllPosts(cmd.Context(), cfg.BoardID)
		if err != nil {
			return fmt.Errorf("failed to read posts: %w", err)
		}

		live := 0
		removed := 0
		for _, p := range posts {
			if p.Removed {
				removed++
			} else {
				live++
			}
		}

		rec, err := st.GetBoard(cmd.Context(), cfg.BoardID)
		if err != nil {
			return fmt.Errorf("failed to read board: %w", err)
		}

		fmt.Println(ui.Title.Render("Board Status"))
		fmt.Println(ui.KV("Board ID:", cfg.BoardID))
		fmt.Println(ui.KV("Database:", cfg.DBPath))
		if rec != nil {
			fmt.Println(ui.KV("Name:", rec.Name))
			fmt.Println(ui.KV("Move any:", rec.Permissions.AllowMoveAny))
			if rec.Background != nil {
				fmt.Println(ui.KV("Background:", rec.Background.URL))
			}
		} else {
			fmt.Println(ui.KV("Name:", ui.Warn.Render("(not configured)")))
		}
		fmt.Println(ui.KV("Posts:", live))
		fmt.Println(ui.KV("Removed:", removed))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
