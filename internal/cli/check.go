package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/medsafe/internal/checker"
	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/model"
)

func newCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check NAME NAME...",
		Short: "Check a list of medications for known interactions",
		Example: `  medsafe check Aspirin Ibuprofen
  medsafe check --format text Tylenol Warfarin "Vitamin D"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withStore(cmd, func(store kb.Store, cfg *config.Config) error {
				c := checker.New(store, checker.WithMaxExhaustive(cfg.Detector.MaxExhaustive))
				res, err := c.Check(args)
				if err != nil {
					return err
				}
				return e.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
					return writeResult(w, res)
				})
			})
		},
	}
}

func writeResult(w io.Writer, res *model.MatchResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "risk level: %s\n", strings.ToUpper(res.RiskLevel.String()))
	for _, in := range res.Interactions {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", in.Severity, strings.Join(in.Drugs, " + "), in.Description)
	}
	if len(res.Interactions) == 0 {
		b.WriteString("  no known interactions\n")
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(&b, "not recognized: %s\n", strings.Join(res.Unresolved, ", "))
	}
	if res.Advisory {
		b.WriteString("note: only pairs were checked for this many medications\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
