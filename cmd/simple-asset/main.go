package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

var serverConfig *config.ServerConfig

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "simple-asset",
	Short: "Asset ingestion service with resilient background storage",
	Long: "simple-asset accepts binary assets, records them as PENDING and pushes\n" +
		"them to object storage in the background, retrying and circuit breaking\n" +
		"until each asset is COMPLETED or FAILED.\n\n" +
		"Configuration is read from the environment; see 'simple-asset env'.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Describe the environment variables",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		usage, err := config.Usage()
		if err != nil {
			return err
		}
		cmd.Println(usage)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(envCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	serverConfig = cfg
	slog.SetDefault(newLogger(cfg))
	return nil
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
