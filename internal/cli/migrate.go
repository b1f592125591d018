package cli

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, dbh, err := setup(cmd)
		if err != nil {
			return err
		}
		defer dbh.Close()
		log.Info("schema ready", "db", cfg.DBDriver)
		return nil
	},
}
