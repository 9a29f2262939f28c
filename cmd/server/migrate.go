package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/image-tattoo/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the images and users tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("schema up to date", "driver", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
