package logging

// Leveled logging with timestamped trace lines

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel converts a level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch name {
	case "silent":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger writes leveled output to stdout/stderr and optionally a file.
// Trace lines carry a microsecond timestamp and the name of the
// connection or component that produced them.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
	now     func() time.Time
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
		now:    time.Now,
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", 0)
	}

	return l, nil
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.GetLevel() >= LogLevelError {
		l.write(fmt.Sprintf("ERROR: "+format, v...), true)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.GetLevel() >= LogLevelInfo {
		l.write(fmt.Sprintf(format, v...), false)
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.GetLevel() >= LogLevelVerbose {
		l.write(fmt.Sprintf(format, v...), false)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.GetLevel() >= LogLevelDebug {
		l.write(fmt.Sprintf("DEBUG: "+format, v...), false)
	}
}

// Trace logs a timestamped event line attributed to a connection or
// component. These are the lines a test author reads to follow a run:
// every connect/listen/send/receive/disconnect event produces one.
func (l *Logger) Trace(name string, format string, v ...interface{}) {
	if l.GetLevel() < LogLevelInfo {
		return
	}
	l.write(FormatLogLine(l.now(), name, fmt.Sprintf(format, v...)), false)
}

// TraceMessage logs a send/receive event followed by an indented
// rendering of the message content.
func (l *Logger) TraceMessage(name, event, rendered string) {
	if l.GetLevel() < LogLevelInfo {
		return
	}
	l.write(FormatLogLine(l.now(), name, event)+"\n    "+rendered, false)
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	formatted := ""
	for i, b := range data {
		if i > 0 {
			formatted += " "
		}
		formatted += fmt.Sprintf("%02x", b)
	}
	l.Debug("%s: %s", label, formatted)
}

// write writes a message to the appropriate outputs
func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	if isError {
		l.stderr.Println(msg)
	} else {
		l.stdout.Println(msg)
	}
}

// FormatLogLine renders a single trace line: "HH:MM:SS.ffffff: name: text".
// The name portion is omitted when empty.
func FormatLogLine(at time.Time, name, text string) string {
	stamp := at.Format("15:04:05.000000")
	if name == "" {
		return stamp + ": " + text
	}
	return stamp + ": " + name + ": " + text
}
