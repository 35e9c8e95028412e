// Package logging adapts zerolog to the runtime.Logger interface so the match code can run
// outside the game server.
package logging

import (
	"fmt"
	"io"
	"maps"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rs/zerolog"
)

// Logger implements runtime.Logger on top of a zerolog.Logger.
type Logger struct {
	zl     zerolog.Logger
	fields map[string]interface{}
}

var _ runtime.Logger = (*Logger)(nil)

// New writes to w at level. When pretty is set the output is a console format.
func New(w io.Writer, level zerolog.Level, pretty bool) *Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, fields: map[string]interface{}{}}
}

// Wrap adapts an existing zerolog logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl, fields: map[string]interface{}{}}
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return &Logger{zl: l.zl.With().Fields(fields).Logger(), fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	return maps.Clone(l.fields)
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}
