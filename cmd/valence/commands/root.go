package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/gitrdm/valencesolver/internal/config"
	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/internal/metrics"
	"github.com/gitrdm/valencesolver/pkg/ilp"
	"github.com/gitrdm/valencesolver/pkg/periodic"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

// app holds what the root command builds for its subcommands.
type app struct {
	cfgFile string

	cfg      *config.Config
	logger   logr.Logger
	table    *periodic.Table
	recorder *metrics.Recorder
	solver   *valence.Solver
	cancel   context.CancelFunc
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return newRootCmd(os.Stdout, os.Stderr).Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "valence",
		Short:         "Assign oxidation states to the elements of a composition",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(solveCmd(a), guessesCmd(a), batchCmd(a), formulaCmd(a), elementsCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}

	tbl, err := periodic.Default()
	if err != nil {
		return err
	}
	if cfg.PriorsFile != "" {
		if tbl, err = tbl.WithPriorsFile(cfg.PriorsFile); err != nil {
			return fmt.Errorf("loading priors: %w", err)
		}
	}
	a.table = tbl

	a.recorder = metrics.New()
	opts := []valence.SolverOption{valence.WithParams(cfg.Params), valence.WithRecorder(a.recorder)}
	if cfg.Solve.NodeLimit > 0 {
		opts = append(opts, valence.WithILPOptions(ilp.WithNodeLimit(cfg.Solve.NodeLimit)))
	}
	a.solver = valence.NewSolver(tbl, tbl, opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logr.NewContext(ctx, a.logger)
	if cfg.Solve.Timeout > 0 {
		ctx, a.cancel = context.WithTimeout(ctx, cfg.Solve.Timeout)
	}
	cmd.SetContext(ctx)

	a.logger.V(logging.DEBUG).Info("configuration loaded",
		"command", cmd.Name(), "configFile", a.cfgFile, "output", cfg.Output,
		"priorsFile", cfg.PriorsFile, "nodeLimit", cfg.Solve.NodeLimit)
	return nil
}

func (a *app) teardown() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return nil
	}
	if err := a.recorder.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	a.logger.V(logging.DEBUG).Info("metrics written", "path", a.cfg.MetricsFile)
	return nil
}
