package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/pkg/valence"
)

type solveOutput struct {
	Counts valence.Counts  `json:"counts" yaml:"counts"`
	Result *valence.Result `json:"result" yaml:"result"`
}

// solve <Symbol=amount>...: most probable oxidation states.
func solveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "solve <Symbol=amount>...",
		Short:   "Print the most probable oxidation states of a composition",
		Example: "  valence solve Sr=1 Fe=1 O=3\n  valence solve Cr=1.9,Mn=0.1,Al=1 -o json",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := parseComposition(args)
			if err != nil {
				return err
			}
			res, counts, err := a.solver.MostProbableComposition(cmd.Context(), comp, a.cfg.Solve.MaxDenominator, a.cfg.Options())
			if err != nil {
				return err
			}
			out := solveOutput{Counts: counts, Result: res}
			return render(cmd.OutOrStdout(), a.cfg.Output, out, func(w io.Writer) error {
				return writeResult(w, counts, res)
			})
		},
	}
}
