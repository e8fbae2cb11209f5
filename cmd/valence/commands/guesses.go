package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/pkg/valence"
)

type guessesOutput struct {
	Counts  valence.Counts     `json:"counts" yaml:"counts"`
	Guesses []valence.Solution `json:"guesses" yaml:"guesses"`
}

// guesses <Symbol=amount>...: every balanced assignment, best first.
func guessesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "guesses <Symbol=amount>...",
		Short: "List every charge-balanced assignment of a composition, best first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := parseComposition(args)
			if err != nil {
				return err
			}
			counts, _, err := comp.Normalize(a.cfg.Solve.MaxDenominator)
			if err != nil {
				return err
			}
			guesses, err := a.solver.Guesses(cmd.Context(), counts, a.cfg.Options())
			if err != nil {
				return err
			}
			if limit > 0 && len(guesses) > limit {
				guesses = guesses[:limit]
			}
			out := guessesOutput{Counts: counts, Guesses: guesses}
			return render(cmd.OutOrStdout(), a.cfg.Output, out, func(w io.Writer) error {
				fmt.Fprintf(w, "composition:\t%s\n", counts)
				if len(guesses) == 0 {
					fmt.Fprintln(w, "result:\tno charge-balanced assignment")
					return nil
				}
				for i := range guesses {
					fmt.Fprintf(w, "%d\t%s\t%.4g\n", i+1, formatValences(&guesses[i]), guesses[i].Score)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many guesses (0 = all)")
	return cmd
}
