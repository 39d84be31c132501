package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the number of lines kept when the log file is trimmed.
const MaxLogLines = 5000

// LogLevel orders log messages by severity.
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{
	LogLevelTrace: "TRACE",
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel parses a level name. Unknown names fall back to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LimitedLogger writes leveled lines to a file and trims the file to its
// last MaxLogLines lines once it grows past that.
type LimitedLogger struct {
	mutex     sync.Mutex
	out       io.Writer
	file      *os.File // nil when out is not a regular file
	lineCount int
	level     LogLevel
}

var (
	// stderrLogger is used until Install is called, and by the CLI.
	stderrLogger = &LimitedLogger{out: os.Stderr, level: LogLevelInfo}
	globalLogger *LimitedLogger
)

// Open appends to the log file at path and makes it the global logger.
func Open(path string, level LogLevel) (*LimitedLogger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	ll := &LimitedLogger{out: f, file: f, level: level}
	ll.countExistingLines()
	Install(ll)
	return ll, nil
}

// NewStderr returns a logger writing to stderr without trimming.
func NewStderr(level LogLevel) *LimitedLogger {
	return &LimitedLogger{out: os.Stderr, level: level}
}

// Install makes ll the target of the package-level functions.
func Install(ll *LimitedLogger) {
	globalLogger = ll
}

func current() *LimitedLogger {
	if globalLogger != nil {
		return globalLogger
	}
	return stderrLogger
}

func (ll *LimitedLogger) SetLevel(level LogLevel) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()
	ll.level = level
}

func (ll *LimitedLogger) enabled(level LogLevel) bool {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()
	return level >= ll.level
}

func (ll *LimitedLogger) log(level LogLevel, format string, v ...any) {
	if !ll.enabled(level) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	_, _ = ll.Write([]byte(line))
}

// Write implements io.Writer so child processes and libraries can share
// the log.
func (ll *LimitedLogger) Write(p []byte) (int, error) {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	n, err := ll.out.Write(p)
	if err != nil {
		return n, err
	}
	if ll.file == nil {
		return n, nil
	}
	ll.lineCount += strings.Count(string(p[:n]), "\n")
	if ll.lineCount > MaxLogLines {
		ll.trim()
	}
	return n, nil
}

func (ll *LimitedLogger) countExistingLines() {
	ll.mutex.Lock()
	defer ll.mutex.Unlock()

	if _, err := ll.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	scanner := bufio.NewScanner(ll.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	ll.lineCount = count
	_, _ = ll.file.Seek(0, io.SeekEnd)
}

// trim keeps the last MaxLogLines lines. Callers hold the mutex.
func (ll *LimitedLogger) trim() {
	if _, err := ll.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	var lines []string
	scanner := bufio.NewScanner(ll.file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > MaxLogLines {
		lines = lines[len(lines)-MaxLogLines:]
	}

	_ = ll.file.Truncate(0)
	_, _ = ll.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(ll.file)
	for _, line := range lines {
		_, _ = w.WriteString(line + "\n")
	}
	_ = w.Flush()
	ll.lineCount = len(lines)
}

// Close closes the log file, if any.
func (ll *LimitedLogger) Close() error {
	if ll.file == nil {
		return nil
	}
	return ll.file.Close()
}

func Debug(format string, v ...any) { current().log(LogLevelDebug, format, v...) }

func Info(format string, v ...any) { current().log(LogLevelInfo, format, v...) }

func Warn(format string, v ...any) { current().log(LogLevelWarn, format, v...) }

func Error(format string, v ...any) { current().log(LogLevelError, format, v...) }

// Fatal logs at error level and exits.
func Fatal(format string, v ...any) {
	current().log(LogLevelError, format, v...)
	os.Exit(1)
}

// Writer returns the current log destination.
func Writer() io.Writer {
	return current()
}

var noop = func() {}

// Trace times an operation at TRACE level:
//
//	defer logger.Trace("candidate.Nearest")()
func Trace(name string) func() {
	ll := current()
	if !ll.enabled(LogLevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		ll.log(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}
