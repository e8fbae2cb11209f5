package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/internal/config"
)

type elementRow struct {
	Symbol string          `json:"symbol" yaml:"symbol"`
	Metal  bool            `json:"metal" yaml:"metal"`
	Common []int           `json:"common" yaml:"common,flow"`
	Known  []int           `json:"known" yaml:"known,flow"`
	Priors map[int]float64 `json:"priors,omitempty" yaml:"priors,omitempty,flow"`
}

// elements [symbol...]: print catalog data.
func elementsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "elements [symbol...]",
		Short: "Print oxidation-state catalogs and priors",
		RunE: func(cmd *cobra.Command, args []string) error {
			syms := args
			if len(syms) == 0 {
				syms = a.table.Symbols()
			}
			rows := make([]elementRow, 0, len(syms))
			for _, s := range syms {
				s = config.CanonicalSymbol(s)
				info, ok := a.table.Element(s)
				if !ok {
					return fmt.Errorf("unknown element %q", s)
				}
				row := elementRow{Symbol: s, Metal: info.Metal, Common: info.Common, Known: info.Known}
				states, scores := a.table.Priors(s)
				if len(states) > 0 {
					row.Priors = make(map[int]float64, len(states))
					for i, st := range states {
						row.Priors[st] = scores[i]
					}
				}
				rows = append(rows, row)
			}
			return render(cmd.OutOrStdout(), a.cfg.Output, rows, func(w io.Writer) error {
				fmt.Fprintln(w, "symbol\tmetal\tcommon\tknown\tpriors")
				for _, r := range rows {
					states, scores := a.table.Priors(r.Symbol)
					priors := ""
					for i, st := range states {
						if i > 0 {
							priors += " "
						}
						priors += fmt.Sprintf("%+d:%g", st, scores[i])
					}
					fmt.Fprintf(w, "%s\t%t\t%v\t%v\t%s\n", r.Symbol, r.Metal, r.Common, r.Known, priors)
				}
				return nil
			})
		},
	}
}
