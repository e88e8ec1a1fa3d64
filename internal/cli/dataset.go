package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
)

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the knowledge base with a YAML dataset",
		Long: `Import reads a YAML dataset (drugs, classes and facts) and replaces the
stored knowledge base with it in one step. Class references such as
"class:nsaid" are expanded; conflicting facts keep the higher severity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := kb.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				if err := store.Replace(cmd.Context(), ds); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d drugs, %d facts\n",
					len(store.Drugs()), len(store.Facts()))
				return err
			})
		},
	}
}

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the knowledge base as YAML to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(store.Dataset()); err != nil {
					return fmt.Errorf("encode dataset: %w", err)
				}
				return enc.Close()
			})
		},
	}
}
