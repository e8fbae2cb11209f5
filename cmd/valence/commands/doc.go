// Package commands defines the valence CLI and wires the solver for
// subcommands.
//
// Commands
//
//   - solve      Most probable oxidation states of one composition
//   - guesses    Every charge-balanced assignment, best first
//   - batch      Solve a YAML or JSON list of compositions concurrently
//   - formula    Smallest composition realising a set of valences
//   - elements   Print the element catalog and priors
//
// Compositions are given as Symbol=amount pairs, e.g. "Fe=2 O=3" or
// "Cr=1.9 Mn=0.1 Al=1"; fractional amounts are normalized to integers.
//
// # Implementation
//
// The root command loads the configuration (flags, VALENCE_* environment,
// optional --config file), builds the zap logger, the periodic table and the
// solver before any subcommand runs, and writes Prometheus metrics after a
// successful run when --metrics-file is set.
package commands
