package cmd

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blogicum/config"
	"blogicum/migrate"
)

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Manage the Postgres schema",
		Long: `Apply or roll back the embedded schema migrations.

  up      apply every pending migration
  down    roll back the most recently applied migration
  status  show the current version and pending migrations

SQLite databases create their schema when opened and need no migrations.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateCommand(cmd, args, v)
		},
	}
	cobraflags.RegisterMap(migrateCmd, commonFlags)
	return migrateCmd
}

func migrateCommand(cmd *cobra.Command, args []string, v *viper.Viper) error {
	ctx := cmd.Context()

	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if cfg.DBDriver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to %s only, %s creates its schema on open", config.DriverPostgres, cfg.DBDriver)
	}
	logger := newLogger(cfg.LogLevel)

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := migrate.NewFSMigrator(pool, migrate.Embedded())
	if err != nil {
		return err
	}
	m = m.WithLogger(logger)

	out := cmd.OutOrStdout()
	switch args[0] {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Applied %d migration(s)\n", n)
	case "down":
		rolled, err := m.Down(ctx)
		if err != nil {
			return err
		}
		if !rolled {
			fmt.Fprintln(out, "Nothing to roll back")
			return nil
		}
		fmt.Fprintln(out, "Rolled back 1 migration")
	case "status":
		st, err := m.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d\n", st.CurrentVersion)
		fmt.Fprintf(out, "Total migrations: %d\n", st.TotalMigrations)
		fmt.Fprintf(out, "Pending: %v\n", st.PendingMigrations)
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
	return nil
}
