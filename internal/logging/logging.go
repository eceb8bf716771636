// Package logging provides the structured logger shared by every engine
// component. Output is line-oriented: one JSON object or one human-readable
// line per entry.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levelPriority = map[Level]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return Level(s)
	default:
		return InfoLevel
	}
}

// Format selects the output encoding.
type Format string

const (
	JSONFormat  Format = "json"
	HumanFormat Format = "human"
)

// Fields carries structured context attached to a log entry.
type Fields map[string]interface{}

// Config holds logger configuration.
type Config struct {
	Format Format
	Level  Level
	Output io.Writer // defaults to stderr so command output stays clean
}

// Logger is a level-filtered structured logger.
type Logger struct {
	format Format
	level  Level
	writer io.Writer
}

// New creates a logger from the given configuration.
func New(cfg Config) *Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	level := cfg.Level
	if level == "" {
		level = InfoLevel
	}
	format := cfg.Format
	if format == "" {
		format = HumanFormat
	}
	return &Logger{format: format, level: level, writer: w}
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, msg string, fields Fields) {
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   msg,
		Fields:    fields,
	}

	if l.format == JSONFormat {
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
			return
		}
		_, _ = fmt.Fprintln(l.writer, string(data))
		return
	}

	_, _ = fmt.Fprintf(l.writer, "%s [%s] %s", e.Timestamp, e.Level, e.Message)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = fmt.Fprint(l.writer, " |")
		for _, k := range keys {
			_, _ = fmt.Fprintf(l.writer, " %s=%v", k, fields[k])
		}
	}
	_, _ = fmt.Fprintln(l.writer)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields Fields) { l.log(DebugLevel, msg, fields) }

// Info logs an info message.
func (l *Logger) Info(msg string, fields Fields) { l.log(InfoLevel, msg, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields Fields) { l.log(WarnLevel, msg, fields) }

// Error logs an error message.
func (l *Logger) Error(msg string, fields Fields) { l.log(ErrorLevel, msg, fields) }
