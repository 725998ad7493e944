// Package logging builds the structured *zap.Logger threaded through
// every daemon component.
//
// Grounded on: kdlbs-kandev/apps/backend/internal/common/logger/logger.go
// (encoder/output-path selection), adapted to this daemon's needs and
// trimmed to avoid the package-level global singleton that repo uses
// elsewhere in this codebase — every component here receives its
// logger via constructor injection instead.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "json" or "console".
	Format string
	// OutputPath is "stdout", "stderr", or a file path.
	OutputPath string
}

// New builds a *zap.Logger from Options. An unparseable Level falls
// back to info; an OutputPath file that cannot be opened is returned
// as an error.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultStr(opts.Level, "info"))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	if opts.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	switch defaultStr(opts.OutputPath, "stdout") {
	case "stdout":
		sink = zapcore.AddSync(os.Stdout)
	case "stderr":
		sink = zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(opts.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// NewNop returns a no-op logger, used as a safe default in tests.
func NewNop() *zap.Logger { return zap.NewNop() }

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Session returns a child logger scoped to a session id. Every
// component that logs session-scoped events should call this once and
// reuse the result, following the teacher's `WithFields` idiom.
func Session(base *zap.Logger, sessionID string) *zap.Logger {
	return base.With(zap.String("session_id", sessionID))
}
