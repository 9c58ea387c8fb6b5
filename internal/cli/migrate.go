package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the operational database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.MigrateUp(); err != nil {
			return err
		}
		log.Info().Str("db", cfg.DatabasePath).Msg("schema up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.MigrateDown(); err != nil {
			return err
		}
		log.Info().Str("db", cfg.DatabasePath).Msg("rolled back one migration")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer d.Close()
		version, dirty, err := d.MigrateVersion()
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		fmt.Printf("version %d (dirty=%v)\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
