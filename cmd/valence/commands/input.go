package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gitrdm/valencesolver/internal/config"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

// parseComposition reads Symbol=amount pairs. Pairs may also be separated
// by commas within one argument.
func parseComposition(args []string) (valence.Composition, error) {
	comp := make(valence.Composition)
	for _, arg := range args {
		for _, pair := range strings.Split(arg, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			sym, amt, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("%w: %q is not of the form Symbol=amount", valence.ErrInvalidInput, pair)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(amt), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: amount of %s: %v", valence.ErrInvalidInput, sym, err)
			}
			comp[config.CanonicalSymbol(sym)] += f
		}
	}
	if len(comp) == 0 {
		return nil, fmt.Errorf("%w: empty composition", valence.ErrInvalidInput)
	}
	return comp, nil
}

type batchFile struct {
	Items []valence.BatchItem `yaml:"items"`
}

// readBatch decodes batch items from a YAML or JSON document: either a
// list of items or a mapping with an "items" list. "-" reads stdin.
func readBatch(path string, stdin io.Reader) ([]valence.BatchItem, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing batch input: %w", err)
	}
	var items []valence.BatchItem
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		err = node.Decode(&items)
	} else {
		var bf batchFile
		err = node.Decode(&bf)
		items = bf.Items
	}
	if err != nil {
		return nil, fmt.Errorf("decoding batch input: %w", err)
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = strconv.Itoa(i + 1)
		}
	}
	return items, nil
}
