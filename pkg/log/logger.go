package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/rs/zerolog"

	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// SetupLogger installs a JSON slog handler as the process default logger and
// routes library warnings through it. Call once at startup.
func SetupLogger(loglevel string) {
	defaultLevel.Set(ToLogLevel(loglevel))
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     defaultLevel,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))

	coplserrors.SetWarningHandler(func(w error) {
		slog.Warn(w.Error())
	})
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// UseZerologWarnings routes library warnings to a zerolog logger. Warning
// types implement zerolog.LogObjectMarshaler, so the structured fields of
// each warning appear on the emitted event.
func UseZerologWarnings(logger zerolog.Logger) {
	coplserrors.SetZerologWarnFunc(func(warning error) {
		event := logger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			event = event.EmbedObject(obj)
		}
		event.Msg(warning.Error())
	})
}

// ===========================================================================
//
//	Default provider
//
// ===========================================================================

var (
	defaultLevel    = &slog.LevelVar{}
	defaultProvider LoggerProvider = &slogProvider{}
	providerMutex   sync.RWMutex
)

// slogProvider is the default LoggerProvider, backed by the process-wide
// slog default logger.
type slogProvider struct{}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{logger: slog.Default()}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{logger: slog.Default().With(ComponentKey, name)}
}

func (p *slogProvider) SetLevel(level Level) {
	defaultLevel.Set(slog.Level(level))
}

// SetLoggerProvider replaces the package-level provider. Tests use this to
// capture log output through a TestLoggerProvider.
func SetLoggerProvider(provider LoggerProvider) {
	providerMutex.Lock()
	defer providerMutex.Unlock()
	defaultProvider = provider
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	providerMutex.RLock()
	defer providerMutex.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name, for
// example "copls.crossval" or "kernel.fusion".
func GetLoggerWithName(name string) Logger {
	providerMutex.RLock()
	defer providerMutex.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...any) {
	l.logger.Debug(msg, fields...)
}

func (l *slogLogger) Info(msg string, fields ...any) {
	l.logger.Info(msg, fields...)
}

func (l *slogLogger) Warn(msg string, fields ...any) {
	l.logger.Warn(msg, fields...)
}

func (l *slogLogger) Error(msg string, fields ...any) {
	l.logger.Error(msg, fields...)
}

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: l.logger.With(fields...)}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.logger.Enabled(ctx, slog.Level(level))
}
