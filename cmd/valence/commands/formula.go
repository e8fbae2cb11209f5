package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/internal/config"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

// formula <Symbol=s1,s2>...: smallest composition for the given valences.
func formulaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "formula <Symbol=state[,state]>...",
		Short:   "Find the smallest composition realising a set of oxidation states",
		Example: "  valence formula Fe=3 Mg=2 O=-2\n  valence formula Fe=2,3 O=-2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := config.ParseOverrides(args)
			if err != nil {
				return err
			}
			g, err := valence.GuessFormula(cmd.Context(), states, a.cfg.Solve.TargetCharge)
			if err != nil {
				return err
			}
			if g == nil {
				return fmt.Errorf("no composition balances these oxidation states to charge %d", a.cfg.Solve.TargetCharge)
			}
			return render(cmd.OutOrStdout(), a.cfg.Output, g, func(w io.Writer) error {
				fmt.Fprintf(w, "composition:\t%s\n", g.Counts)
				fmt.Fprintf(w, "atoms:\t%d\n", g.Atoms)
				return nil
			})
		},
	}
}
