package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ANSI color codes for console output
const (
	ColorReset        = "\033[0m"
	ColorGreen        = "\033[32m"
	ColorCyan         = "\033[36m"
	ColorBrightRed    = "\033[91m"
	ColorBrightYellow = "\033[93m"
	ColorBrightGray   = "\033[90m"
)

// Column widths for better alignment
const (
	ServiceNameWidth = 20 // Fixed width for service names
	LogLevelWidth    = 7  // Fixed width for log levels (ERROR, WARN, etc.) - icons add +2
)

// Field keys attached to every entry.
const (
	ServiceField = "service"
	VersionField = "version"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]string
}

// Logger provides leveled logging on top of logrus, plus streaming of entries
// to subscribers.
type Logger struct {
	serviceName string
	version     string
	base        *logrus.Logger

	mu          sync.RWMutex
	subscribers []chan LogEntry
}

// New creates a new logger instance writing the console format to stdout.
func New(serviceName, version string) *Logger {
	l := &Logger{
		serviceName: serviceName,
		version:     version,
		base:        logrus.New(),
		subscribers: make([]chan LogEntry, 0),
	}
	l.base.SetOutput(os.Stdout)
	l.base.SetLevel(logrus.InfoLevel)
	l.base.SetFormatter(&consoleFormatter{
		serviceName:  serviceName,
		colorEnabled: isTerminal(),
	})
	l.base.AddHook(&subscriberHook{logger: l})
	return l
}

// NewNop returns a logger that discards console output. Subscribers still
// receive entries.
func NewNop() *Logger {
	l := New("nop", "")
	l.base.SetOutput(io.Discard)
	return l
}

// isTerminal checks if we're outputting to a terminal (for color support)
func isTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// SetLevel sets the minimum level (debug, info, warn, error).
func (l *Logger) SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.base.SetLevel(lvl)
	return nil
}

// SetFormat switches between the console layout ("console", "text") and JSON ("json").
func (l *Logger) SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "console", "text":
		l.base.SetFormatter(&consoleFormatter{serviceName: l.serviceName, colorEnabled: isTerminal()})
	case "json":
		l.base.SetFormatter(&fieldFormatter{
			Formatter: &logrus.JSONFormatter{},
			Fields: logrus.Fields{
				ServiceField: l.serviceName,
				VersionField: l.version,
			},
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects console output.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// Subscribe returns a channel to receive log entries
func (l *Logger) Subscribe() <-chan LogEntry {
	ch := make(chan LogEntry, 100)

	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()

	return ch
}

func (l *Logger) publish(entry LogEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
			// Skip if channel is full
		}
	}
}

func (l *Logger) entry(fields map[string]string) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(l.base)
	}
	lf := make(logrus.Fields, len(fields))
	for k, v := range fields {
		lf[k] = v
	}
	return l.base.WithFields(lf)
}

func render(message string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// Debug logs a debug message with optional formatting
func (l *Logger) Debug(message string, args ...interface{}) {
	l.entry(nil).Debug(render(message, args))
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry(nil).Debugf(format, args...)
}

// Info logs an info message with optional formatting
func (l *Logger) Info(message string, args ...interface{}) {
	l.entry(nil).Info(render(message, args))
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry(nil).Infof(format, args...)
}

// Warn logs a warning message with optional formatting
func (l *Logger) Warn(message string, args ...interface{}) {
	l.entry(nil).Warn(render(message, args))
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry(nil).Warnf(format, args...)
}

// Error logs an error message with optional formatting
func (l *Logger) Error(message string, args ...interface{}) {
	l.entry(nil).Error(render(message, args))
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry(nil).Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string) {
	l.entry(nil).Fatal(message)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry(nil).Fatalf(format, args...)
}

// WithFields logs a message with additional fields
func (l *Logger) WithFields(fields map[string]string) *LogContext {
	return &LogContext{
		logger: l,
		fields: fields,
	}
}

// LogContext provides field-based logging
type LogContext struct {
	logger *Logger
	fields map[string]string
}

func (c *LogContext) Debug(message string) {
	c.logger.entry(c.fields).Debug(message)
}

func (c *LogContext) Info(message string) {
	c.logger.entry(c.fields).Info(message)
}

func (c *LogContext) Warn(message string) {
	c.logger.entry(c.fields).Warn(message)
}

func (c *LogContext) Error(message string) {
	c.logger.entry(c.fields).Error(message)
}

// subscriberHook forwards every emitted entry to the logger's subscribers.
type subscriberHook struct {
	logger *Logger
}

func (h *subscriberHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *subscriberHook) Fire(e *logrus.Entry) error {
	var fields map[string]string
	if len(e.Data) > 0 {
		fields = make(map[string]string, len(e.Data))
		for k, v := range e.Data {
			fields[k] = fmt.Sprint(v)
		}
	}
	h.logger.publish(LogEntry{
		Time:    e.Time,
		Level:   levelName(e.Level),
		Message: e.Message,
		Fields:  fields,
	})
	return nil
}

// fieldFormatter adds default fields to every entry before delegating.
type fieldFormatter struct {
	logrus.Formatter
	Fields logrus.Fields
}

func (f *fieldFormatter) Format(e *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(e.Data)+len(f.Fields))
	for k, v := range f.Fields {
		data[k] = v
	}
	for k, v := range e.Data {
		data[k] = v
	}
	clone := *e
	clone.Data = data
	return f.Formatter.Format(&clone)
}

// consoleFormatter renders the aligned, colored console layout:
// [timestamp] [service] [level] message key=value...
type consoleFormatter struct {
	serviceName  string
	colorEnabled bool
}

func (f *consoleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	level := levelName(e.Level)

	color, reset := "", ""
	if f.colorEnabled {
		color = colorForLevel(level)
		reset = ColorReset
	}

	var b strings.Builder
	if f.colorEnabled {
		b.WriteString(ColorCyan)
	}
	fmt.Fprintf(&b, "[%s] [%s] [%s%s%s] %s",
		e.Time.Format("2006-01-02 15:04:05.000"),
		formatServiceName(f.serviceName),
		color, formatLogLevel(level), reset,
		e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
		}
	}
	b.WriteString(reset)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func levelName(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// colorForLevel returns the appropriate color for a log level
func colorForLevel(level string) string {
	switch level {
	case "DEBUG":
		return ColorBrightGray
	case "INFO":
		return ColorGreen
	case "WARN":
		return ColorBrightYellow
	case "ERROR", "FATAL":
		return ColorBrightRed
	default:
		return ColorReset
	}
}

// formatServiceName truncates and pads service name for consistent column width
func formatServiceName(serviceName string) string {
	if len(serviceName) > ServiceNameWidth {
		return serviceName[:ServiceNameWidth-1] + "…"
	}
	return fmt.Sprintf("%-*s", ServiceNameWidth, serviceName)
}

// formatLogLevel pads log level for consistent column width and adds visual indicators
func formatLogLevel(level string) string {
	levelStr := level

	switch level {
	case "ERROR", "FATAL":
		levelStr = "✗ " + levelStr
	case "WARN":
		levelStr = "⚠ " + levelStr
	case "INFO":
		levelStr = "ℹ " + levelStr
	case "DEBUG":
		levelStr = "◦ " + levelStr
	}

	return fmt.Sprintf("%-*s", LogLevelWidth+2, levelStr) // +2 for the icon
}
