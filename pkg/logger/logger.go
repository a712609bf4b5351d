package logger

import (
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// ParseLevel maps a level name from configuration to a Level. Unknown
// names fall back to InfoLevel.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel
	case "notice":
		return NoticeLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// networkColors assigns a stable color to well-known network names so
// interleaved logs from multiple networks stay readable. Networks not
// listed here rotate through the palette by name.
var networkColors = map[string]color.Attribute{
	"mainnet":      color.FgHiGreen,
	"base":         color.FgBlue,
	"arbitrum":     color.FgHiBlue,
	"polygon":      color.FgMagenta,
	"bsc":          color.FgYellow,
	"avalanche":    color.FgRed,
	"mainnet-beta": color.FgHiMagenta,
	"devnet":       color.FgCyan,
}

var palette = []color.Attribute{
	color.FgGreen,
	color.FgYellow,
	color.FgBlue,
	color.FgMagenta,
	color.FgCyan,
	color.FgHiGreen,
	color.FgHiBlue,
	color.FgHiMagenta,
}

func networkColor(network string) color.Attribute {
	if c, ok := networkColors[network]; ok {
		return c
	}
	var sum int
	for _, r := range network {
		sum += int(r)
	}
	return palette[sum%len(palette)]
}

func networkPrefix(network string) string {
	if network == "" {
		return ""
	}
	prefix := "[" + strings.ToUpper(network) + "]"
	// pad short prefixes so message columns line up
	for len(prefix) < 7 {
		prefix += " "
	}
	return prefix + " "
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithNetwork(network string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithNetwork(network string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithNetwork(network string, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithNetwork(network string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) InfoWithNetwork(_ string, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) ErrorWithNetwork(_ string, _ string, _ ...interface{}) {
}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) DebugWithNetwork(_ string, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) NoticeWithNetwork(_ string, _ string, _ ...interface{}) {
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, network prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, network string, format string) string {
	prefix := networkPrefix(network)
	if l.enableColoring && prefix != "" {
		prefix = color.New(networkColor(network)).Sprint(prefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + prefix + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, "", format), args...)
	}
}

func (l *StdLogger) InfoWithNetwork(network string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, network, format), args...)
	}
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, "", format), args...)
	}
}

func (l *StdLogger) ErrorWithNetwork(network string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, network, format), args...)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, "", format), args...)
	}
}

func (l *StdLogger) DebugWithNetwork(network string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, network, format), args...)
	}
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, "", format), args...)
	}
}

func (l *StdLogger) NoticeWithNetwork(network string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, network, format), args...)
	}
}
