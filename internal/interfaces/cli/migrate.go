package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/database/postgres"
)

// NewMigrateCmd creates the migrate command group. Unlike the other
// commands it needs database credentials, so it loads the server config
// file instead of talking to the API.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the alert corpus schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := migrateConfig(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	var steps int
	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll the schema back by N migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := migrateConfig(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	rollbackCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(upCmd, rollbackCmd)
	return cmd
}

func migrateConfig(cmd *cobra.Command) (*config.Config, error) {
	cc, err := getCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	if cc.opts.ConfigPath == "" {
		return nil, fmt.Errorf("migrate requires --config")
	}
	cfg, err := config.Load(cc.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.MigrationPath == "" {
		return nil, fmt.Errorf("database.migration_path is not set in %s", cc.opts.ConfigPath)
	}
	return cfg, nil
}
