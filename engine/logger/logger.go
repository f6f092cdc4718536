// package logger provides the levelled logger shared by the render systems, the scene and the engine loop.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is the levelled logging capability accepted by every engine component.
type Logger interface {
	// DebugEnabled reports whether Debugf output is emitted.
	//
	// Returns:
	//   - bool: true if debug logging is on
	DebugEnabled() bool

	// SetDebug toggles Debugf output.
	//
	// Parameters:
	//   - enabled: true to emit debug messages
	SetDebug(enabled bool)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type defaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

var _ Logger = &defaultLogger{}

// NewDefaultLogger creates a Logger writing INFO and DEBUG lines to stdout and WARN and ERROR lines to stderr.
// Every line has the form "[prefix] LEVEL: message" with a microsecond timestamp.
//
// Parameters:
//   - prefix: component name printed in brackets, omitted when empty
//   - debug: whether Debugf output is emitted initially
//   - options: functional options, e.g. WithOutput to redirect the streams
//
// Returns:
//   - Logger: the newly created logger
func NewDefaultLogger(prefix string, debug bool, options ...LoggerBuilderOption) Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	l := &defaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *defaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *defaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *defaultLogger) format(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.format("DEBUG", format, args...))
}

func (l *defaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.format("INFO", format, args...))
}

func (l *defaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.format("WARN", format, args...))
}

func (l *defaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.format("ERROR", format, args...))
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. Components use it when no logger is configured.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) SetDebug(enabled bool)             {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// LoggerBuilderOption is a functional option for configuring the default logger.
type LoggerBuilderOption func(*defaultLogger)

// WithOutput redirects the info and error streams of the logger.
//
// Parameters:
//   - out: destination for DEBUG and INFO lines
//   - errOut: destination for WARN and ERROR lines
//
// Returns:
//   - LoggerBuilderOption: option function to apply
func WithOutput(out, errOut io.Writer) LoggerBuilderOption {
	return func(l *defaultLogger) {
		l.out = log.New(out, "", 0)
		l.err = log.New(errOut, "", 0)
	}
}
