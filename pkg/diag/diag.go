// Package diag carries the diagnostic context threaded through the SDK core.
// A Logger wraps a logrus logger and fans every delivered entry out to the
// registered listeners. Listener registration is guarded independently of any
// attribute state so listeners may be added or removed from any goroutine.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a diagnostic entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelWarning: "warning",
	LevelError:   "error",
	LevelFatal:   "fatal",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts the level names used by FALKEN_LOG_LEVEL.
func ParseLevel(value string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("diag: unknown log level %q", value)
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LevelDebug
	case logrus.WarnLevel:
		return LevelWarning
	case logrus.ErrorLevel:
		return LevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Fields are structured key/value pairs attached to an entry.
type Fields map[string]any

// Listener receives every delivered entry with its formatted message.
type Listener func(level Level, message string)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Logger is the injected diagnostic context.
type Logger struct {
	base *logrus.Logger

	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    ListenerID

	abortOnFatal atomic.Bool
	exit         func(code int)
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput redirects formatted log output.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.base.SetOutput(w) }
}

// WithLevel sets the minimum delivered level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.base.SetLevel(level.logrusLevel()) }
}

// WithJSON switches to the JSON formatter.
func WithJSON() Option {
	return func(l *Logger) { l.base.SetFormatter(&logrus.JSONFormatter{}) }
}

// WithAbortOnFatal controls whether fatal entries terminate the process.
func WithAbortOnFatal(abort bool) Option {
	return func(l *Logger) { l.abortOnFatal.Store(abort) }
}

// WithExitFunc replaces os.Exit for fatal entries.
func WithExitFunc(fn func(code int)) Option {
	return func(l *Logger) {
		if fn != nil {
			l.exit = fn
		}
	}
}

// New constructs a Logger writing text output to stderr at info level.
func New(opts ...Option) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l := &Logger{base: base, exit: os.Exit}
	l.abortOnFatal.Store(true)
	for _, opt := range opts {
		opt(l)
	}
	base.AddHook(fanoutHook{owner: l})
	return l
}

// FromEnv builds a Logger configured by FALKEN_LOG_LEVEL and FALKEN_LOG_FORMAT.
func FromEnv(opts ...Option) *Logger {
	level, err := ParseLevel(os.Getenv("FALKEN_LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	base := []Option{WithLevel(level)}
	if strings.EqualFold(os.Getenv("FALKEN_LOG_FORMAT"), "json") {
		base = append(base, WithJSON())
	}
	return New(append(base, opts...)...)
}

// Discard returns a Logger that writes nothing but still notifies listeners.
func Discard(opts ...Option) *Logger {
	return New(append([]Option{WithOutput(io.Discard), WithLevel(LevelDebug)}, opts...)...)
}

// Logrus exposes the underlying logrus logger for adapters that need it.
func (l *Logger) Logrus() *logrus.Logger { return l.base }

// SetAbortOnFatal toggles process termination on fatal entries.
func (l *Logger) SetAbortOnFatal(abort bool) { l.abortOnFatal.Store(abort) }

// AbortOnFatal reports whether fatal entries terminate the process.
func (l *Logger) AbortOnFatal() bool { return l.abortOnFatal.Load() }

// AddListener registers fn and returns an identifier for RemoveListener.
func (l *Logger) AddListener(fn Listener) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.listeners = append(l.listeners, listenerEntry{id: l.nextID, fn: fn})
	return l.nextID
}

// RemoveListener unregisters a listener. It reports whether it was present.
func (l *Logger) RemoveListener(id ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.listeners {
		if entry.id == id {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount reports the number of registered listeners.
func (l *Logger) ListenerCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

func (l *Logger) notify(level Level, message string) {
	l.mu.RLock()
	snapshot := make([]listenerEntry, len(l.listeners))
	copy(snapshot, l.listeners)
	l.mu.RUnlock()
	for _, entry := range snapshot {
		entry.fn(level, message)
	}
}

// Log delivers msg with structured fields.
func (l *Logger) Log(level Level, fields Fields, msg string) {
	entry := logrus.NewEntry(l.base)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	entry.Log(level.logrusLevel(), msg)
	if level == LevelFatal && l.abortOnFatal.Load() {
		l.exit(1)
	}
}

// Logf formats and delivers a message.
func (l *Logger) Logf(level Level, format string, args ...any) {
	l.Log(level, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.Logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Logf(LevelWarning, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Logf(LevelError, format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.Logf(LevelFatal, format, args...) }

type fanoutHook struct {
	owner *Logger
}

func (fanoutHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h fanoutHook) Fire(entry *logrus.Entry) error {
	h.owner.notify(fromLogrus(entry.Level), entry.Message)
	return nil
}

var defaultLogger atomic.Pointer[Logger]

// Default returns the process-wide logger used at the application boundary.
func Default() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := FromEnv()
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger and returns the previous one.
func SetDefault(l *Logger) *Logger {
	return defaultLogger.Swap(l)
}
