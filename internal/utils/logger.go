package utils

import (
	"io"
	"log"
	"strings"
)

type Logger struct {
	*log.Logger
	level string
}

// NewLogger writes to w. A nil w discards everything, which is what the
// full-screen TUI wants unless a log file is configured.
func NewLogger(level string, w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{Logger: log.New(w, "", log.LstdFlags), level: strings.ToLower(level)}
}

func (l *Logger) Level() string {
	return l.level
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level == "debug" {
		l.Printf("DEBUG: "+format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.level == "warn" || l.level == "error" {
		return
	}
	l.Printf("INFO: "+format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.level == "error" {
		return
	}
	l.Printf("WARN: "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Printf("ERROR: "+format, args...)
}
