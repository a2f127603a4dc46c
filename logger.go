package easybus

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel type defines the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // Disables logging
)

var levelNames = map[LogLevel]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelNone:    "NONE",
}

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	return levelNames[l]
}

// ParseLogLevel parses a level name such as "debug" or "WARNING".
func ParseLogLevel(s string) (LogLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		name = "WARNING"
	}
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// SimpleLogger is the io.Writer handed to handlers, pollers and the gateway.
// The level of a message is taken from its "DEBUG:", "INFO:", "WARNING:" or
// "ERROR:" prefix; messages without one are INFO.
type SimpleLogger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timeFormat string
	prefix     string
}

// NewSimpleLogger creates a new SimpleLogger. A nil output writes to os.Stdout.
func NewSimpleLogger(output io.Writer, level LogLevel, prefix string) *SimpleLogger {
	if output == nil {
		output = os.Stdout
	}
	return &SimpleLogger{
		level:      level,
		output:     output,
		timeFormat: time.RFC3339,
		prefix:     prefix,
	}
}

// SetLevel sets the logging level.
func (l *SimpleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *SimpleLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Write implements io.Writer. Messages below the logger's level are dropped
// but still reported as written.
func (l *SimpleLogger) Write(p []byte) (int, error) {
	level, message := splitLevel(strings.TrimSpace(string(p)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == LevelNone || level < l.level {
		return len(p), nil
	}
	line := fmt.Sprintf("%s [%s] <%s> %s\n", time.Now().Format(l.timeFormat), level, l.prefix, message)
	if _, err := io.WriteString(l.output, line); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *SimpleLogger) logf(level LogLevel, format string, args ...interface{}) {
	fmt.Fprintf(l, level.String()+": "+format, args...)
}

// Debugf logs at DEBUG level.
func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Infof logs at INFO level.
func (l *SimpleLogger) Infof(format string, args ...interface{}) { l.logf(LevelInfo, format, args...) }

// Warnf logs at WARNING level.
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarning, format, args...)
}

// Errorf logs at ERROR level.
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// Close closes the underlying output unless it is os.Stdout or os.Stderr.
func (l *SimpleLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.output == os.Stdout || l.output == os.Stderr {
		return nil
	}
	if closer, ok := l.output.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// splitLevel strips a level prefix from message.
func splitLevel(message string) (LogLevel, string) {
	upper := strings.ToUpper(message)
	for _, p := range []struct {
		prefix string
		level  LogLevel
	}{
		{"[DEBUG]", LevelDebug}, {"DEBUG:", LevelDebug},
		{"[INFO]", LevelInfo}, {"INFO:", LevelInfo},
		{"[WARNING]", LevelWarning}, {"WARNING:", LevelWarning}, {"WARN:", LevelWarning},
		{"[ERROR]", LevelError}, {"ERROR:", LevelError},
	} {
		if strings.HasPrefix(upper, p.prefix) {
			return p.level, strings.TrimSpace(message[len(p.prefix):])
		}
	}
	return LevelInfo, message
}
