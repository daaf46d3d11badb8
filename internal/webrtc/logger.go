package webrtc

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// LoggerFactory routes pion's internal logging into zerolog, one sub-logger
// per pion scope.
type LoggerFactory struct {
	base zerolog.Logger
}

func NewLoggerFactory(base zerolog.Logger) *LoggerFactory {
	return &LoggerFactory{base: base}
}

func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{l: f.base.With().Str("scope", scope).Logger()}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (l *leveledLogger) Trace(msg string)                  { l.l.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(format string, args ...any) { l.l.Trace().Msgf(format, args...) }
func (l *leveledLogger) Debug(msg string)                  { l.l.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(format string, args ...any) { l.l.Debug().Msgf(format, args...) }
func (l *leveledLogger) Info(msg string)                   { l.l.Info().Msg(msg) }
func (l *leveledLogger) Infof(format string, args ...any)  { l.l.Info().Msgf(format, args...) }
func (l *leveledLogger) Warn(msg string)                   { l.l.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(format string, args ...any)  { l.l.Warn().Msgf(format, args...) }
func (l *leveledLogger) Error(msg string)                  { l.l.Error().Msg(msg) }
func (l *leveledLogger) Errorf(format string, args ...any) { l.l.Error().Msgf(format, args...) }
