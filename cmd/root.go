package cmd

import (
	"context"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"blogicum/config"
)

// Flags shared by every command. Each one can also be set through the
// matching BLOGICUM_* environment variable.
var commonFlags = map[string]cobraflags.Flag{
	config.KeyDBDriver: &cobraflags.StringFlag{
		Name:  config.KeyDBDriver,
		Value: config.DriverPostgres,
		Usage: "Entity store backend (postgres, sqlite)",
	},
	config.KeyDatabaseURL: &cobraflags.StringFlag{
		Name:  config.KeyDatabaseURL,
		Value: config.DefaultDatabaseURL,
		Usage: "Postgres connection string",
	},
	config.KeySQLitePath: &cobraflags.StringFlag{
		Name:  config.KeySQLitePath,
		Value: config.DefaultSQLitePath,
		Usage: "SQLite database file, used with --db-driver=sqlite",
	},
	config.KeySearchEngine: &cobraflags.StringFlag{
		Name:  config.KeySearchEngine,
		Value: config.EngineNone,
		Usage: "Full-text search backend (none, elastic, bleve)",
	},
	config.KeyLogLevel: &cobraflags.StringFlag{
		Name:  config.KeyLogLevel,
		Value: config.DefaultLogLevel,
		Usage: "Log level (debug, info, warn, error)",
	},
}

// NewRootCommand builds the command tree around its own viper instance, so
// flag bindings never leak between trees.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:          "blogicum",
		Short:        "Blogicum publishes posts by category and location",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(v))
	root.AddCommand(newMigrateCommand(v))
	root.AddCommand(newReindexCommand(v))
	return root
}

// bindFlags binds the flags the user actually set on cmd into v, so unset
// flags do not shadow environment variables.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func loadApp(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (*app, error) {
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	return newApp(ctx, v)
}
