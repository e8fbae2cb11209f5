// Package logging builds the zap-backed logr loggers used across the module
// and defines the verbosity levels library code logs at.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V(...).
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// Options selects the encoder and verbosity of a logger.
type Options struct {
	// Level is one of "info", "debug" or "trace".
	Level string
	// Development switches to the human-readable console encoder.
	Development bool
}

// ParseLevel maps a level name onto a logr verbosity.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	case "trace":
		return TRACE, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logr.Logger backed by zap.
func New(opts Options) (logr.Logger, error) {
	v, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	// logr V(n) maps to zap level -n
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-v))
	cfg.DisableStacktrace = !opts.Development

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("building zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger returns a development logger at trace verbosity that writes
// to stderr, for use from tests.
func NewTestLogger() logr.Logger {
	zl := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.Level(-TRACE),
	))
	return zapr.NewLogger(zl)
}
