package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

// batch <file|->: solve many compositions concurrently.
func batchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file|->",
		Short: "Solve a YAML or JSON list of compositions",
		Long: `Solve a list of compositions concurrently. The input is a YAML or JSON
document holding either a list of items or a mapping with an "items" list:

  - id: hematite
    composition: {Fe: 2, O: 3}
  - id: alloy
    composition: {Cr: 1.9, Mn: 0.1, Al: 1}

Items failing validation are reported with an error and do not stop the
batch. Items exceeding --item-timeout are reported as infeasible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readBatch(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			b := valence.NewBatch(a.solver,
				valence.WithWorkers(a.cfg.Batch.Workers),
				valence.WithItemTimeout(a.cfg.Batch.ItemTimeout),
				valence.WithRateLimit(a.cfg.Batch.RateLimit),
				valence.WithMaxDenominator(a.cfg.Solve.MaxDenominator),
			)
			results, err := b.Run(cmd.Context(), items, a.cfg.Options())
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			a.logger.V(logging.DEBUG).Info("batch done", "items", len(items), "failed", failed)

			return render(cmd.OutOrStdout(), a.cfg.Output, results, func(w io.Writer) error {
				for _, r := range results {
					switch {
					case r.Err != nil:
						fmt.Fprintf(w, "%s\terror\t%s\n", r.ID, r.Error)
					case r.TimedOut:
						fmt.Fprintf(w, "%s\t%s\ttimed out\n", r.ID, r.Counts)
					default:
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Counts,
							formatValences(r.Result.Solution), r.Result.Stage, strings.Join(r.Result.Comments, "; "))
					}
				}
				return nil
			})
		},
	}
}
