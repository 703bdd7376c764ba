package cmd

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blogicum/config"
)

func newReindexCommand(v *viper.Viper) *cobra.Command {
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index from the entity store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reindexCommand(cmd, args, v)
		},
	}
	cobraflags.RegisterMap(reindexCmd, commonFlags)
	return reindexCmd
}

func reindexCommand(cmd *cobra.Command, _ []string, v *viper.Viper) error {
	a, err := loadApp(cmd.Context(), cmd, v)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.SearchEngine == config.EngineNone {
		return fmt.Errorf("set --%s to elastic or bleve to reindex", config.KeySearchEngine)
	}
	n, err := a.blog().Reindex(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d post(s)\n", n)
	return nil
}
