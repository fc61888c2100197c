package main

import (
	"errors"

	"tenantcrm/pkg/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		if cfg.DB.URL == "" {
			return errors.New("DATABASE_URL is required to migrate")
		}
		pool, err := database.NewPool(cmd.Context(), cfg.DB.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		return database.Migrate(cmd.Context(), pool, log)
	},
}
