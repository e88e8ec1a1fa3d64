package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

func newFactCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Manage interaction facts",
	}
	cmd.AddCommand(newFactUpsertCmd(e), newFactListCmd(e))
	return cmd
}

func newFactUpsertCmd(e *env) *cobra.Command {
	var (
		drugs       []string
		severity    string
		description string
		override    bool
	)
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or replace the fact for a set of drugs",
		Example: `  medsafe fact upsert --drug aspirin --drug ibuprofen --severity high \
    --description "Increased GI bleeding risk"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := model.ParseSeverity(severity)
			if err != nil {
				return err
			}
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				f, err := store.UpsertFact(cmd.Context(), drugs, sev, description, override)
				if err != nil {
					return err
				}
				return e.print(cmd.OutOrStdout(), f, nil)
			})
		},
	}
	cmd.Flags().StringArrayVar(&drugs, "drug", nil, "drug name or ID, at least two (repeatable)")
	cmd.Flags().StringVar(&severity, "severity", "", "safe, moderate or high (required)")
	cmd.Flags().StringVar(&description, "description", "", "clinical description")
	cmd.Flags().BoolVar(&override, "override", false, "replace an existing fact with a different severity")
	_ = cmd.MarkFlagRequired("drug")
	_ = cmd.MarkFlagRequired("severity")
	return cmd
}

func newFactListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List interaction facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				facts := store.Facts()
				return e.print(cmd.OutOrStdout(), facts, func(w io.Writer) error {
					for _, f := range facts {
						if _, err := fmt.Fprintf(w, "%-8s %s: %s\n", f.Severity, f.Drugs, f.Description); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}
