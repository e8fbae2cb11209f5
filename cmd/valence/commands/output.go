package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/gitrdm/valencesolver/pkg/valence"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if err := text(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}

func formatValences(sol *valence.Solution) string {
	if sol == nil {
		return "-"
	}
	parts := make([]string, 0, len(sol.Valences))
	for _, sym := range sol.Symbols() {
		parts = append(parts, fmt.Sprintf("%s=%s", sym, sol.Valences[sym]))
	}
	return strings.Join(parts, " ")
}

func writeResult(w io.Writer, counts valence.Counts, res *valence.Result) error {
	fmt.Fprintf(w, "composition:\t%s\n", counts)
	if !res.Feasible() {
		fmt.Fprintln(w, "result:\tno charge-balanced assignment")
		return nil
	}
	for _, sym := range res.Solution.Symbols() {
		fmt.Fprintf(w, "%s\t%s\n", sym, res.Solution.Valences[sym])
	}
	fmt.Fprintf(w, "usual:\t%t\n", res.Usual)
	fmt.Fprintf(w, "stage:\t%s\n", res.Stage)
	fmt.Fprintf(w, "score:\t%.4g\n", res.Solution.Score)
	if res.Compensated {
		fmt.Fprintf(w, "compensation:\t%s\n", res.Compensation)
	}
	for _, c := range res.Comments {
		fmt.Fprintf(w, "comment:\t%s\n", c)
	}
	return nil
}
