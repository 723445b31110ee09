package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"parking/internal/config"
	"parking/internal/database"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parkingctl",
		Short:         "Administrative triggers for the parking reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newExpireCmd())
	root.AddCommand(newNotificationsCmd())
	root.AddCommand(newSpotsCmd())

	return root
}

// openDB loads configuration and returns a migrated database handle.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
