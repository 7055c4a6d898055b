package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/config"
	"fintrack/internal/store/sqlite"
)

func newMigrateCommand() *cobra.Command {
	var dbPath string
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Long: "Apply pending SQLite schema migrations. The server migrates on " +
			"startup as well; this command is for upgrading a database offline.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = config.Load().SQLiteDBPath
			}
			if !statusOnly {
				if err := sqlite.RunMigrations(dbPath); err != nil {
					return err
				}
			}
			version, dirty, err := sqlite.SchemaVersion(dbPath)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", dbPath, version, state)
			return err
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the current schema version")
	return cmd
}
