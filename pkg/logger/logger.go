// Package logger writes human-readable status and access-log lines for a
// local tool: one line per event, leveled, no structured output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Logger writes leveled status lines and per-request access lines to a
// single writer. Safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter exists for tests that capture output.
func NewWithWriter(out io.Writer, level string) *Logger {
	return &Logger{out: out, level: parseLevel(level)}
}

func parseLevel(level string) Level {
	switch level {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.emit(DEBUG, "DEBUG", msg, nil, args)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.emit(INFO, "INFO", msg, nil, args)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.emit(WARN, "WARN", msg, nil, args)
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	l.emit(ERROR, "ERROR", msg, err, args)
}

// Access writes the single access-log line for one handled request.
func (l *Logger) Access(method, path string, status int, duration time.Duration, remoteAddr string) {
	l.write(fmt.Sprintf("[%s] %s %s %d %dms %s",
		timestamp(), method, path, status, duration.Milliseconds(), remoteAddr))
}

func (l *Logger) emit(min Level, tag, msg string, err error, args []interface{}) {
	if l.level > min {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp(), tag, msg)

	if err != nil {
		args = append(args, "error", err.Error())
	}
	if len(args) > 0 {
		b.WriteString(" |")
		for i := 0; i+1 < len(args); i += 2 {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		}
	}

	l.write(b.String())
}

func (l *Logger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
