// Package log provides a global logger with a configurable logging level.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs anomalies that are not expected to occur during normal use.
	LevelWarning              // Logs anomalies that are expected to occur occasionally during normal use.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs detailed IO, including every BLE transport callback.
)

var (
	mu             sync.Mutex
	globalLogLevel Level
	output         io.Writer = os.Stderr
)

var labels = map[Level]string{
	LevelDebug:   "[debug]",
	LevelInfo:    "[info ]",
	LevelWarning: "[warn ]",
	LevelError:   "[error]",
}

func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	globalLogLevel = level
}

// SetOutput redirects log lines away from stderr. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(level Level, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level > globalLogLevel {
		return
	}
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(output, "%s %s %s\n", time.Now().Format(time.RFC3339), labels[level], msg)
}

func Debug(format string, a ...interface{}) {
	emit(LevelDebug, format, a...)
}

func Info(format string, a ...interface{}) {
	emit(LevelInfo, format, a...)
}

func Warning(format string, a ...interface{}) {
	emit(LevelWarning, format, a...)
}

func Error(format string, a ...interface{}) {
	emit(LevelError, format, a...)
}
