// ckboard is a collaborative sticky-note board: a relay server backed
// by SQLite plus headless board sessions that stay in sync over
// WebSocket.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sadmanca/ck-board/internal/config"
	"github.com/sadmanca/ck-board/internal/ui"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ckboard",
	Short: "Collaborative sticky-note board",
	Long: `ckboard synchronizes sticky-note boards across sessions.

A serve process owns the board database and relays changes over
WebSocket; watch processes join a board remotely and mirror every
post, move, edit, and removal in real time.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./ckboard.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "board", Title: "Board Commands:"},
	)
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the process logger. With a log file configured,
// output goes through lumberjack for rotation; otherwise stderr.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderErr("Error:"), err)
		os.Exit(1)
	}
}
