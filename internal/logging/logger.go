// Package logging is a small leveled logger with console and JSON output.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Format selects how entries are rendered
type Format int

const (
	// FormatConsole renders "timestamp LEVEL message key=value ..."
	FormatConsole Format = iota
	// FormatJSON renders one JSON object per line
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "console"
}

// Level is the severity of an entry
type Level int

const (
	// DebugLevel is for message previews and per-frame tracing
	DebugLevel Level = iota
	// InfoLevel is for session and request lifecycle events
	InfoLevel
	// WarnLevel is for recoverable relay problems
	WarnLevel
	// ErrorLevel is for failures surfaced to the client
	ErrorLevel
)

var levelNames = [...]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

func (l Level) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel reads a level name case-insensitively. Unknown names,
// including the empty string, yield InfoLevel.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WarnLevel
	}
	for lvl, n := range levelNames {
		if n == name {
			return Level(lvl)
		}
	}
	return InfoLevel
}

// Logger writes leveled entries with structured fields. Children made by
// With share the parent's writer and lock, so lines never interleave.
type Logger struct {
	level  Level
	format Format
	output io.Writer
	fields []Field
	mu     *sync.Mutex
}

func newLogger(level Level, format Format, output io.Writer) *Logger {
	return &Logger{level: level, format: format, output: output, mu: &sync.Mutex{}}
}

// New returns a console Logger on stdout
func New(level Level) *Logger {
	return newLogger(level, FormatConsole, os.Stdout)
}

// NewWithFormat returns a Logger on stdout using format
func NewWithFormat(level Level, format Format) *Logger {
	return newLogger(level, format, os.Stdout)
}

// NewWithOutput returns a console Logger writing to output
func NewWithOutput(level Level, output io.Writer) *Logger {
	return newLogger(level, FormatConsole, output)
}

// Discard returns a Logger that drops everything
func Discard() *Logger {
	return newLogger(ErrorLevel+1, FormatConsole, io.Discard)
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// Enabled reports whether an entry at level would be written
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

// With returns a child Logger that prepends fields to every entry
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &child
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *Logger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	if len(l.fields) > 0 {
		fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	}

	var buf bytes.Buffer
	ts := time.Now().UTC().Format(time.RFC3339)
	if l.format != FormatJSON || !encodeJSON(&buf, ts, level, msg, fields) {
		buf.Reset()
		encodeConsole(&buf, ts, level, msg, fields)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.output.Write(buf.Bytes())
}

func encodeConsole(buf *bytes.Buffer, ts string, level Level, msg string, fields []Field) {
	fmt.Fprintf(buf, "%s %s %s", ts, level, msg)
	for _, f := range fields {
		fmt.Fprintf(buf, " %s=%v", f.Key, f.Value)
	}
	buf.WriteByte('\n')
}

// encodeJSON reports false when a field value cannot be marshaled
func encodeJSON(buf *bytes.Buffer, ts string, level Level, msg string, fields []Field) bool {
	entry := make(map[string]any, len(fields)+3)
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["timestamp"] = ts
	entry["level"] = level.String()
	entry["message"] = msg

	// Encode appends the trailing newline
	return json.NewEncoder(buf).Encode(entry) == nil
}

// Field is a key/value pair attached to an entry
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration stores the value's String form, e.g. "1.5s"
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error stores err's message under "error"; a nil err becomes "<nil>"
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field { return Field{Key: key, Value: value} }
