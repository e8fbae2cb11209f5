package main

import (
	"os"

	"github.com/gitrdm/valencesolver/cmd/valence/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
