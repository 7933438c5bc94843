// Package logger is the process-wide log front for kgraph. Components call
// the package functions with a bracketed component tag ("[Ingest]",
// "[Query]") followed by key/value pairs; Init decides where the lines go.
package logger

import (
	"os"
	"sync/atomic"
)

// LoggerInstance is a log backend. Every backend passed to Init receives
// every line.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type level int

const (
	levelPlain level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

// Logger fans lines out to its backends.
type Logger struct {
	instances []LoggerInstance
}

var current atomic.Pointer[Logger]

// Init replaces the backends. The server, the worker and kgctl each call it
// once at startup; lines logged before that are discarded, which keeps
// library tests quiet.
func Init(instances ...LoggerInstance) {
	current.Store(&Logger{instances: instances})
}

func emit(lvl level, message string, keyvals []any) {
	l := current.Load()
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		switch lvl {
		case levelDebug:
			instance.Debug(message, keyvals...)
		case levelInfo:
			instance.Info(message, keyvals...)
		case levelWarn:
			instance.Warn(message, keyvals...)
		case levelError:
			instance.Error(message, keyvals...)
		case levelFatal:
			instance.Fatal(message, keyvals...)
		default:
			instance.Log(message, keyvals...)
		}
	}
}

// Log writes a line without a level.
func Log(message string, keyvals ...any) { emit(levelPlain, message, keyvals) }

// Debug lines only show with DEBUG=true.
func Debug(message string, keyvals ...any) { emit(levelDebug, message, keyvals) }

func Info(message string, keyvals ...any) { emit(levelInfo, message, keyvals) }

// Warn is for degraded paths that keep going, such as a failed generation
// falling back to an extractive answer.
func Warn(message string, keyvals ...any) { emit(levelWarn, message, keyvals) }

func Error(message string, keyvals ...any) { emit(levelError, message, keyvals) }

// Fatal logs and exits with status 1, also when no backend is installed or
// none of them exits on its own.
func Fatal(message string, keyvals ...any) {
	emit(levelFatal, message, keyvals)
	os.Exit(1)
}
