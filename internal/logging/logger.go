// Package logging provides config-driven categorized logging on top of zap.
// Each subsystem asks for a logger by category; categories switched off in
// the config get a no-op logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/babilon/dedup-domains/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot   Category = "boot"   // Startup, config resolution
	CategoryIngest Category = "ingest" // Reading input files, row classification
	CategoryFilter Category = "filter" // Literal pattern pass
	CategoryStore  Category = "store"  // Row materialization
	CategoryReport Category = "report" // Run report and metrics output
	CategorySort   Category = "sort"   // Canonical ordering tool
)

// Options are the command line overrides applied on top of the config.
type Options struct {
	Verbose bool   // force debug level
	Silent  bool   // errors only
	File    string // extra JSON log file, overrides config
}

// Loggers hands out category loggers derived from one base logger.
type Loggers struct {
	base  *zap.Logger
	cfg   config.LoggingConfig
	close func() // releases the log file, nil without one
}

// New builds the base logger the way the CLI always has: production config,
// debug level when verbose.
func New(cfg config.LoggingConfig, opts Options) (*Loggers, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	if opts.Silent {
		level = zapcore.ErrorLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch cfg.Format {
	case "", "console", "text":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc.Encoding = "json"
	}

	base, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	file := cfg.File
	if opts.File != "" {
		file = opts.File
	}
	if file != "" {
		fileCore, closeFile, err := jsonFileCore(file, zc.Level)
		if err != nil {
			_ = base.Sync()
			return nil, err
		}
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
		return &Loggers{base: base, cfg: cfg, close: closeFile}, nil
	}

	return &Loggers{base: base, cfg: cfg}, nil
}

// Wrap builds Loggers around an existing logger, e.g. zap.NewNop() in tests.
func Wrap(base *zap.Logger, cfg config.LoggingConfig) *Loggers {
	if base == nil {
		base = zap.NewNop()
	}
	return &Loggers{base: base, cfg: cfg}
}

func jsonFileCore(path string, level zap.AtomicLevel) (zapcore.Core, func(), error) {
	ws, closeFile, err := zap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level), closeFile, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Base returns the uncategorized logger.
func (l *Loggers) Base() *zap.Logger { return l.base }

// Get returns the logger for category, or a no-op logger when the category
// is disabled.
func (l *Loggers) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.base.Named(string(category))
}

// With returns Loggers whose base carries extra fields, e.g. a run id.
func (l *Loggers) With(fields ...zap.Field) *Loggers {
	return &Loggers{base: l.base.With(fields...), cfg: l.cfg}
}

// Sync flushes buffered log entries. Errors from syncing stderr are common
// on terminals and are ignored by callers.
func (l *Loggers) Sync() error { return l.base.Sync() }

// Close flushes and releases the log file opened by New. Loggers derived
// with With do not own the file and only flush. Close is safe to call twice.
func (l *Loggers) Close() error {
	err := l.Sync()
	if l.close != nil {
		l.close()
		l.close = nil
	}
	return err
}
