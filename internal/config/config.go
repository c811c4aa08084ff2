// Package config loads ckboard configuration from a file, environment
// variables, and defaults, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved ckboard configuration.
type Config struct {
	// Port is the relay server listen port.
	Port int `mapstructure:"port"`
	// DBPath is the SQLite database file path.
	DBPath string `mapstructure:"db_path"`
	// BoardID selects which board a session joins.
	BoardID string `mapstructure:"board_id"`
	// Username identifies this session's user. New posts are stamped
	// with it, so it must be set before any post can be created.
	Username string `mapstructure:"username"`
	// SettingsFile is an optional yaml file of board settings that the
	// server watches and applies on change. Empty disables watching.
	SettingsFile string `mapstructure:"settings_file"`
	// LogFile is an optional log destination. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
	// CanvasWidth and CanvasHeight size the local scene viewport.
	CanvasWidth  float64 `mapstructure:"canvas_width"`
	CanvasHeight float64 `mapstructure:"canvas_height"`
}

// Load reads configuration. When cfgFile is non-empty it must exist;
// otherwise ckboard.yaml in the working directory is used if present.
// Every key can be overridden with a CKBOARD_ environment variable,
// e.g. CKBOARD_BOARD_ID.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8484)
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("board_id", "default")
	v.SetDefault("username", defaultUsername())
	v.SetDefault("settings_file", "")
	v.SetDefault("log_file", "")
	v.SetDefault("canvas_width", 1920.0)
	v.SetDefault("canvas_height", 1080.0)

	v.SetEnvPrefix("CKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("ckboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.BoardID == "" {
		return nil, fmt.Errorf("board_id is required")
	}

	return &cfg, nil
}

// defaultDBPath places the database under the user config directory,
// falling back to the working directory when that cannot be resolved.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ckboard.db"
	}
	return filepath.Join(dir, "ckboard", "ckboard.db")
}

// defaultUsername falls back to the OS user, which matches how post
// IDs identify their author when nothing is configured.
func defaultUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
