package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologConfig holds configuration for the zerolog-backed Logger.
type ZerologConfig struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console writer for development
	Output io.Writer
}

type zerologLogger struct {
	zlog zerolog.Logger
}

// NewZerologLogger creates a structured Logger backed by zerolog.
func NewZerologLogger(cfg ZerologConfig) Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", "viewer").
		Logger()
	return &zerologLogger{zlog: zlog}
}

func (l *zerologLogger) Debug(msg string, fields ...Field) {
	applyFields(l.zlog.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...Field) {
	applyFields(l.zlog.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...Field) {
	applyFields(l.zlog.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...Field) {
	applyFields(l.zlog.Error(), fields).Msg(msg)
}

func (l *zerologLogger) With(fields ...Field) Logger {
	ctx := l.zlog.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key(), f.Value())
	}
	return &zerologLogger{zlog: ctx.Logger()}
}

func applyFields(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ev = ev.Str(f.Key(), v)
		case int:
			ev = ev.Int(f.Key(), v)
		case float64:
			ev = ev.Float64(f.Key(), v)
		case time.Duration:
			ev = ev.Dur(f.Key(), v)
		case error:
			ev = ev.AnErr(f.Key(), v)
		default:
			ev = ev.Interface(f.Key(), v)
		}
	}
	return ev
}
