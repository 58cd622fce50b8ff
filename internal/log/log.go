// Package log writes prioritized, optionally colorized diagnostic lines.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
)

// Priority follows syslog numbering: lower is more severe.
type Priority int

// Log messages level
const (
	EMERG  Priority = 0 // Emergency: system is unusable
	ALERT  Priority = 1 // Alert: action must be taken immediately
	CRIT   Priority = 2 // Critical: critical conditions
	ERR    Priority = 3 // Error: error conditions
	WARN   Priority = 4 // Warning: warning conditions
	NOTICE Priority = 5 // Notice: normal but significant condition
	INFO   Priority = 6 // Informational: informational messages
	DEBUG  Priority = 7 // Debug: debug messages
)

// DefaultTimestampFormat is used for the leading timestamp of every line
const DefaultTimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

var priorities = map[Priority]string{
	EMERG:  "EMERGENCY",
	ALERT:  "ALERT",
	CRIT:   "CRITICAL",
	ERR:    "ERROR",
	WARN:   "WARNING",
	NOTICE: "NOTICE",
	INFO:   "INFO",
	DEBUG:  "DEBUG",
}

// String returns the priority name
func (p Priority) String() string {
	if name, ok := priorities[p]; ok {
		return name
	}
	return fmt.Sprintf("PRIORITY(%d)", int(p))
}

// ParsePriority accepts a priority name in any case, with "warn", "err",
// "crit" and "emerg" as short forms.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for p, full := range priorities {
		if name == full {
			return p, nil
		}
	}

	switch name {
	case "EMERG":
		return EMERG, nil
	case "CRIT":
		return CRIT, nil
	case "ERR":
		return ERR, nil
	case "WARN":
		return WARN, nil
	}

	return 0, errors.Errorf("log: unknown priority %q", s)
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// Logger writes lines at or above its priority to a shared output.
// A nil *Logger discards everything.
type Logger struct {
	out    *output
	level  Priority
	color  bool
	prefix string

	timestampFormat string
}

// New creates a logger writing to w.
func New(w io.Writer, level Priority, color bool) *Logger {
	return &Logger{
		out:             &output{w: w},
		level:           level,
		color:           color,
		timestampFormat: DefaultTimestampFormat,
	}
}

// Stderr creates a logger on the process's standard error. Color escape
// sequences are translated where the terminal needs it.
func Stderr(level Priority, color bool) *Logger {
	return New(colorable.NewColorable(os.Stderr), level, color)
}

// With returns a logger that prefixes every message with prefix and shares
// the output of l.
func (l *Logger) With(prefix string) *Logger {
	if l == nil {
		return nil
	}

	c := *l
	if c.prefix != "" {
		prefix = c.prefix + " " + prefix
	}
	c.prefix = prefix
	return &c
}

// Enabled reports whether messages of priority p are written
func (l *Logger) Enabled(p Priority) bool {
	return l != nil && p <= l.level
}

// Log formats and writes one line.
func (l *Logger) Log(p Priority, format string, args ...interface{}) {
	if !l.Enabled(p) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	line := l.format(time.Now(), p, msg)

	l.out.mu.Lock()
	_, _ = io.WriteString(l.out.w, line)
	l.out.mu.Unlock()
}

func (l *Logger) format(ts time.Time, p Priority, msg string) string {
	stamp := ts.Format(l.timestampFormat)
	if !l.color {
		return fmt.Sprintf("[%s] %s (%d): %s\n", stamp, p, int(p), msg)
	}

	return fmt.Sprintf("%s[%s]%s %s%s (%d): %s%s\n",
		ansi.ColorCode("white+h"), stamp, ansi.Reset,
		ansi.ColorCode(Color(p)), p, int(p), msg, ansi.Reset,
	)
}

// Color returns the ansi style used for priority p.
func Color(p Priority) string {
	switch {
	case p <= ERR:
		return "red"
	case p == WARN:
		return "yellow"
	case p == INFO:
		return "green"
	default:
		return "white"
	}
}

// Emergf logs at EMERG
func (l *Logger) Emergf(format string, args ...interface{}) { l.Log(EMERG, format, args...) }

// Errorf logs at ERR
func (l *Logger) Errorf(format string, args ...interface{}) { l.Log(ERR, format, args...) }

// Warnf logs at WARN
func (l *Logger) Warnf(format string, args ...interface{}) { l.Log(WARN, format, args...) }

// Noticef logs at NOTICE
func (l *Logger) Noticef(format string, args ...interface{}) { l.Log(NOTICE, format, args...) }

// Infof logs at INFO
func (l *Logger) Infof(format string, args ...interface{}) { l.Log(INFO, format, args...) }

// Debugf logs at DEBUG
func (l *Logger) Debugf(format string, args ...interface{}) { l.Log(DEBUG, format, args...) }
