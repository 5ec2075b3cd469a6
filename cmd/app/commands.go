package main

import (
	"errors"
	"fmt"

	"media-transcoder/internal/infra/ffmpeg"
	pg "media-transcoder/internal/infra/db/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "create the job tables in the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Database.URL == "" {
			return errors.New("database.url is not set")
		}
		ctx := cmd.Context()
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.ApplySchema(ctx, pool); err != nil {
			return err
		}
		logger.Info().Msg("schema applied")
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "print the media duration ffprobe reports for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := ffmpeg.NewEncoder(cfg.Encoder).Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%.3fs\n", args[0], d, d.Seconds())
		return nil
	},
}
