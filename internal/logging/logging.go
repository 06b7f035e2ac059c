// Package logging builds the process-wide zap logger. The TUI owns the
// terminal, so logs go to a file or nowhere.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nixlim/alert-top/internal/config"
)

// ParseLevel maps a config level name to a zap level. Unknown names fall
// back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger for cfg. With no file configured the logger discards
// everything unless toStderr is set, which headless commands use.
// The returned function flushes buffered entries.
func New(cfg config.LoggingConfig, toStderr bool) (*zap.Logger, func(), error) {
	var paths []string
	switch {
	case cfg.File != "":
		paths = []string{cfg.File}
	case toStderr:
		paths = []string{"stderr"}
	default:
		return zap.NewNop(), func() {}, nil
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if colorLevels(cfg, os.Stderr) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "building logger")
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// colorLevels reports whether level names should be coloured: only when
// logging to stderr and stderr is a terminal.
func colorLevels(cfg config.LoggingConfig, stderr *os.File) bool {
	if cfg.File != "" {
		return false
	}
	fd := stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
