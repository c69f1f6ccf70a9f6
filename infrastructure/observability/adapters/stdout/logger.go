package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"hospitalsync/application/ports"
)

// Level orders log severities
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger implements ports.Logger on a line-oriented writer
type Logger struct {
	fields   map[string]interface{}
	logger   *log.Logger
	minLevel Level
	json     bool
	now      func() time.Time
}

// LoggerOption configures a Logger
type LoggerOption func(*Logger)

// WithWriter sends log lines to w instead of stdout
func WithWriter(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.logger = log.New(w, "", 0)
	}
}

// WithLevel drops entries below the given level
func WithLevel(level Level) LoggerOption {
	return func(l *Logger) {
		l.minLevel = level
	}
}

// WithJSON switches output to one JSON object per line
func WithJSON(enabled bool) LoggerOption {
	return func(l *Logger) {
		l.json = enabled
	}
}

// NewLogger creates a new stdout logger
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		fields:   make(map[string]interface{}),
		logger:   log.New(os.Stdout, "", 0), // No prefix, we'll format ourselves
		minLevel: LevelInfo,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.log(LevelError, msg, fields...)
}

// WithFields returns a new Logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) ports.Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		fields:   newFields,
		logger:   l.logger,
		minLevel: l.minLevel,
		json:     l.json,
		now:      l.now,
	}
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.minLevel {
		return
	}

	entry := l.createLogEntry(level, msg, fields...)
	if l.json {
		l.logJSON(entry)
	} else {
		l.logText(entry)
	}
}

// createLogEntry builds the log entry
func (l *Logger) createLogEntry(level Level, msg string, fields ...interface{}) map[string]interface{} {
	entry := make(map[string]interface{}, len(l.fields)+len(fields)/2+3)

	for k, v := range l.fields {
		entry[k] = v
	}

	// Parse variadic fields (key1, value1, key2, value2, ...)
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}

		if err, ok := fields[i+1].(error); ok && err != nil {
			entry[key] = err.Error()
		} else {
			entry[key] = fields[i+1]
		}
	}

	entry["timestamp"] = l.now().UTC().Format(time.RFC3339)
	entry["level"] = levelNames[level]
	entry["message"] = msg

	return entry
}

// logJSON outputs the entry as JSON
func (l *Logger) logJSON(entry map[string]interface{}) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("Failed to marshal log entry: %v", err)
		return
	}
	l.logger.Println(string(jsonBytes))
}

// logText outputs the entry as formatted text with fields in key order
func (l *Logger) logText(entry map[string]interface{}) {
	timestamp := entry["timestamp"]
	level := entry["level"]
	message := entry["message"]
	delete(entry, "timestamp")
	delete(entry, "level")
	delete(entry, "message")

	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldStrs := make([]string, 0, len(keys))
	for _, k := range keys {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, entry[k]))
	}

	logLine := fmt.Sprintf("%s [%s] %s", timestamp, level, message)
	if len(fieldStrs) > 0 {
		logLine += " | " + strings.Join(fieldStrs, " ")
	}

	l.logger.Println(logLine)
}
