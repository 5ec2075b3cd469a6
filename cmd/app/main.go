package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"media-transcoder/internal/config"
	"media-transcoder/internal/infra/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

var (
	cfg    *config.Config
	logger *zerolog.Logger

	flagConfigPath string
	flagDev        bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "config.yaml", "path to YAML config file (TRANSCODER_CONFIG overrides)")
	rootCmd.PersistentFlags().BoolVar(&flagDev, "dev", false, "developer mode: console logs, in-memory job store when no database is configured")
	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initApp

	rootCmd.AddCommand(serveCmd, migrateCmd, probeCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("transcoder failed")
		} else {
			fmt.Fprintln(os.Stderr, "transcoder failed:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "transcoder",
	Short:        "Media transcoding service with live progress",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("transcoder: %s\n", version)
		if commit != "" {
			fmt.Printf("commit:     %s\n", commit)
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Printf("go:         %s\n", info.GoVersion)
		}
	},
}

func initApp(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}
	path := flagConfigPath
	if env, ok := os.LookupEnv("TRANSCODER_CONFIG"); ok && env != "" {
		path = env
	}

	var err error
	cfg, err = config.LoadConfig(path, flagDev)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger = logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	return nil
}
