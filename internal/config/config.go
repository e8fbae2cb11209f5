// Package config loads CLI configuration for the valence command.
//
// Configuration Sources (highest priority first):
//
//  1. Command-line flags
//  2. Environment variables (VALENCE_SOLVE_TARGET_CHARGE, VALENCE_LOG_LEVEL, ...)
//  3. A YAML configuration file
//  4. Default values
//
// Example file:
//
//	params:
//	  warning-threshold: 0.25
//	solve:
//	  try-doubling: false
//	  overrides:
//	    Fe: [2, 3]
//	batch:
//	  workers: 8
//	  item-timeout: 5s
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VALENCE"

// ErrInvalidConfig is returned for configuration values that fail
// validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete configuration of one CLI invocation.
type Config struct {
	Params valence.Params `mapstructure:"params"`
	Solve  SolveConfig    `mapstructure:"solve"`
	Batch  BatchConfig    `mapstructure:"batch"`
	Log    LogConfig      `mapstructure:"log"`

	// PriorsFile overlays the bundled prior table.
	PriorsFile string `mapstructure:"priors-file"`
	// MetricsFile receives Prometheus metrics at exit when set.
	MetricsFile string `mapstructure:"metrics-file"`
	// Output is one of "text", "json" or "yaml".
	Output string `mapstructure:"output"`
}

// SolveConfig mirrors valence.Options plus engine limits.
type SolveConfig struct {
	TargetCharge           int              `mapstructure:"target-charge"`
	BroadenMetals          bool             `mapstructure:"broaden-metals"`
	AddCompensator         bool             `mapstructure:"add-compensator"`
	DetectAlloys           bool             `mapstructure:"detect-alloys"`
	TryDoubling            bool             `mapstructure:"try-doubling"`
	AllStates              bool             `mapstructure:"all-states"`
	AllMetalPositiveStates bool             `mapstructure:"all-metal-positive-states"`
	AddZeroValence         bool             `mapstructure:"add-zero-valence"`
	Overrides              map[string][]int `mapstructure:"overrides"`
	MaxDenominator         int              `mapstructure:"max-denominator"`
	NodeLimit              int              `mapstructure:"node-limit"`
	Timeout                time.Duration    `mapstructure:"timeout"`
}

// BatchConfig configures batch solving.
type BatchConfig struct {
	Workers     int           `mapstructure:"workers"`
	ItemTimeout time.Duration `mapstructure:"item-timeout"`
	RateLimit   int           `mapstructure:"rate-limit"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// flag name → configuration key
var flagKeys = map[string]string{
	"target-charge":             "solve.target-charge",
	"broaden-metals":            "solve.broaden-metals",
	"add-compensator":           "solve.add-compensator",
	"detect-alloys":             "solve.detect-alloys",
	"try-doubling":              "solve.try-doubling",
	"all-states":                "solve.all-states",
	"all-metal-positive-states": "solve.all-metal-positive-states",
	"add-zero-valence":          "solve.add-zero-valence",
	"max-denominator":           "solve.max-denominator",
	"node-limit":                "solve.node-limit",
	"timeout":                   "solve.timeout",
	"workers":                   "batch.workers",
	"item-timeout":              "batch.item-timeout",
	"rate-limit":                "batch.rate-limit",
	"log-level":                 "log.level",
	"log-development":           "log.development",
	"priors":                    "priors-file",
	"metrics-file":              "metrics-file",
	"output":                    "output",
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	opts := valence.DefaultOptions()
	return Config{
		Params: valence.DefaultParams(),
		Solve: SolveConfig{
			BroadenMetals:  opts.BroadenMetals,
			AddCompensator: opts.AddCompensator,
			DetectAlloys:   opts.DetectAlloys,
			TryDoubling:    opts.TryDoubling,
			MaxDenominator: 1000,
		},
		Log:    LogConfig{Level: "info"},
		Output: "text",
	}
}

// AddFlags registers the persistent flags of the CLI on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("target-charge", d.Solve.TargetCharge, "required total charge")
	fs.Bool("broaden-metals", d.Solve.BroadenMetals, "allow every positive state of metals when the strict solve fails")
	fs.Bool("add-compensator", d.Solve.AddCompensator, "absorb residual charge on oxygen sites when the strict solve fails")
	fs.Bool("detect-alloys", d.Solve.DetectAlloys, "assign zero to all-metal compositions without a strict solution")
	fs.Bool("try-doubling", d.Solve.TryDoubling, "retry with doubled amounts")
	fs.Bool("all-states", d.Solve.AllStates, "use every known oxidation state")
	fs.Bool("all-metal-positive-states", d.Solve.AllMetalPositiveStates, "add every known positive state of metals")
	fs.Bool("add-zero-valence", d.Solve.AddZeroValence, "add state 0 to every element")
	fs.StringArray("override", nil, "candidate states of one element, e.g. Fe=2,3 (repeatable)")
	fs.Int("max-denominator", d.Solve.MaxDenominator, "largest denominator accepted for fractional amounts")
	fs.Int("node-limit", d.Solve.NodeLimit, "branch and bound node limit per integer program (0 = none)")
	fs.Duration("timeout", d.Solve.Timeout, "overall time limit (0 = none)")
	fs.Int("workers", d.Batch.Workers, "concurrent batch solves (0 = number of CPUs)")
	fs.Duration("item-timeout", d.Batch.ItemTimeout, "time limit per batch item (0 = none)")
	fs.Int("rate-limit", d.Batch.RateLimit, "batch solves started per second (0 = unlimited)")
	fs.String("log-level", d.Log.Level, "log level: info, debug or trace")
	fs.Bool("log-development", d.Log.Development, "human-readable console logs")
	fs.String("priors", d.PriorsFile, "YAML file overlaying the bundled prior table")
	fs.String("metrics-file", d.MetricsFile, "write Prometheus metrics to this file at exit")
	fs.StringP("output", "o", d.Output, "output format: text, json or yaml")
}

// Load merges defaults, the optional file, the environment and the flags
// of fs. An empty file skips the file source.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	// viper lowercases map keys
	if len(cfg.Solve.Overrides) > 0 {
		overrides := make(map[string][]int, len(cfg.Solve.Overrides))
		for sym, states := range cfg.Solve.Overrides {
			overrides[CanonicalSymbol(sym)] = states
		}
		cfg.Solve.Overrides = overrides
	}
	if fs != nil {
		if specs, err := fs.GetStringArray("override"); err == nil && len(specs) > 0 {
			overrides, err := ParseOverrides(specs)
			if err != nil {
				return nil, err
			}
			if cfg.Solve.Overrides == nil {
				cfg.Solve.Overrides = make(map[string][]int, len(overrides))
			}
			for sym, states := range overrides {
				cfg.Solve.Overrides[sym] = states
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("params.missing-prior-score", d.Params.MissingPriorScore)
	v.SetDefault("params.compensator-zero-score", d.Params.CompensatorZeroScore)
	v.SetDefault("params.compensator-shift-score", d.Params.CompensatorShiftScore)
	v.SetDefault("params.zero-valence-score", d.Params.ZeroValenceScore)
	v.SetDefault("params.warning-threshold", d.Params.WarningThreshold)
	v.SetDefault("params.max-sum-range", d.Params.MaxSumRange)

	v.SetDefault("solve.target-charge", d.Solve.TargetCharge)
	v.SetDefault("solve.broaden-metals", d.Solve.BroadenMetals)
	v.SetDefault("solve.add-compensator", d.Solve.AddCompensator)
	v.SetDefault("solve.detect-alloys", d.Solve.DetectAlloys)
	v.SetDefault("solve.try-doubling", d.Solve.TryDoubling)
	v.SetDefault("solve.all-states", d.Solve.AllStates)
	v.SetDefault("solve.all-metal-positive-states", d.Solve.AllMetalPositiveStates)
	v.SetDefault("solve.add-zero-valence", d.Solve.AddZeroValence)
	v.SetDefault("solve.max-denominator", d.Solve.MaxDenominator)
	v.SetDefault("solve.node-limit", d.Solve.NodeLimit)
	v.SetDefault("solve.timeout", d.Solve.Timeout)

	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.item-timeout", d.Batch.ItemTimeout)
	v.SetDefault("batch.rate-limit", d.Batch.RateLimit)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	v.SetDefault("priors-file", d.PriorsFile)
	v.SetDefault("metrics-file", d.MetricsFile)
	v.SetDefault("output", d.Output)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.Output)
	}
	switch {
	case c.Solve.MaxDenominator < 1:
		return fmt.Errorf("%w: max-denominator must be positive", ErrInvalidConfig)
	case c.Solve.NodeLimit < 0:
		return fmt.Errorf("%w: node-limit is negative", ErrInvalidConfig)
	case c.Solve.Timeout < 0, c.Batch.ItemTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	case c.Batch.Workers < 0, c.Batch.RateLimit < 0:
		return fmt.Errorf("%w: workers and rate-limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Options returns the solve options described by the configuration.
func (c *Config) Options() valence.Options {
	return valence.Options{
		Policy: valence.Policy{
			Overrides:              c.Solve.Overrides,
			AllStates:              c.Solve.AllStates,
			AllMetalPositiveStates: c.Solve.AllMetalPositiveStates,
			AddZeroValence:         c.Solve.AddZeroValence,
		},
		TargetCharge:   c.Solve.TargetCharge,
		BroadenMetals:  c.Solve.BroadenMetals,
		AddCompensator: c.Solve.AddCompensator,
		DetectAlloys:   c.Solve.DetectAlloys,
		TryDoubling:    c.Solve.TryDoubling,
	}
}

// ParseOverrides parses "Fe=2,3" style candidate overrides.
func ParseOverrides(specs []string) (map[string][]int, error) {
	out := make(map[string][]int, len(specs))
	for _, spec := range specs {
		sym, list, ok := strings.Cut(spec, "=")
		sym = strings.TrimSpace(sym)
		if !ok || sym == "" || strings.TrimSpace(list) == "" {
			return nil, fmt.Errorf("%w: override %q is not of the form Symbol=s1,s2", ErrInvalidConfig, spec)
		}
		var states []int
		for _, f := range strings.Split(list, ",") {
			s, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("%w: override %q: %v", ErrInvalidConfig, spec, err)
			}
			states = append(states, s)
		}
		out[CanonicalSymbol(sym)] = states
	}
	return out, nil
}

// CanonicalSymbol capitalizes an element symbol: "fe" → "Fe".
func CanonicalSymbol(sym string) string {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return sym
	}
	return strings.ToUpper(sym[:1]) + strings.ToLower(sym[1:])
}
