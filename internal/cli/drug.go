package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

func newDrugCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drug",
		Short: "Manage canonical drugs and synonyms",
	}
	cmd.AddCommand(newDrugAddCmd(e), newDrugSynonymCmd(e), newDrugShowCmd(e), newDrugListCmd(e))
	return cmd
}

func newDrugAddCmd(e *env) *cobra.Command {
	var d model.Drug
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a canonical drug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				added, err := store.AddDrug(cmd.Context(), d)
				if err != nil {
					return err
				}
				return e.print(cmd.OutOrStdout(), added, nil)
			})
		},
	}
	cmd.Flags().StringVar(&d.ID, "id", "", "canonical ID (required)")
	cmd.Flags().StringVar(&d.Name, "name", "", "display name (default: the ID)")
	cmd.Flags().StringSliceVar(&d.Synonyms, "synonym", nil, "synonym, repeatable")
	cmd.Flags().StringVar(&d.Warnings, "warnings", "", "monograph warnings")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newDrugSynonymCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "synonym ID SYNONYM",
		Short: "Bind a synonym to a canonical drug",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				if err := store.AddSynonym(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				d, err := store.LookupDrug(args[0])
				if err != nil {
					return err
				}
				return e.print(cmd.OutOrStdout(), d, nil)
			})
		},
	}
}

func newDrugShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Resolve a name to its canonical drug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				d, err := store.LookupDrug(args[0])
				if err != nil {
					return err
				}
				return e.print(cmd.OutOrStdout(), d, nil)
			})
		},
	}
}

func newDrugListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List canonical drugs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, _ *config.Config) error {
				drugs := store.Drugs()
				return e.print(cmd.OutOrStdout(), drugs, func(w io.Writer) error {
					for _, d := range drugs {
						line := d.ID
						if len(d.Synonyms) > 0 {
							line += " (" + strings.Join(d.Synonyms, ", ") + ")"
						}
						if _, err := fmt.Fprintln(w, line); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}
