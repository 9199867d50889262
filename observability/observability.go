// Package observability defines the logging and tracing hooks the
// toolkit's engines accept. Defaults are no-ops; the CLI installs a
// text logger.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field      { return stringField{key, value} }
func Int(key string, value int) Field     { return intField{key, value} }
func Int64(key string, value int64) Field { return int64Field{key, value} }
func Error(key string, err error) Field   { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// writerLogger prints one line per event. Used by the CLI with
// os.Stderr.
type writerLogger struct {
	mu     *sync.Mutex
	w      io.Writer
	bound  []Field
	debugV bool
}

// NewWriterLogger returns a Logger that writes text lines to w. Debug
// events are emitted only when verbose is set.
func NewWriterLogger(w io.Writer, verbose bool) Logger {
	return &writerLogger{mu: &sync.Mutex{}, w: w, debugV: verbose}
}

func (l *writerLogger) log(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %-5s %s", time.Now().Format(time.RFC3339), level, msg)
	for _, f := range l.bound {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(l.w, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(l.w)
}

func (l *writerLogger) Debug(msg string, fields ...Field) {
	if l.debugV {
		l.log("DEBUG", msg, fields)
	}
}
func (l *writerLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *writerLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &writerLogger{mu: l.mu, w: l.w, bound: bound, debugV: l.debugV}
}

// Tracer provides tracing hooks for tool operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted by the toolkit.
const (
	MetricLoadTime     = "doc.load.duration"
	MetricPageCount    = "doc.pages.count"
	MetricWriteTime    = "doc.write.duration"
	MetricRenderTime   = "render.page.duration"
	MetricRasterOpTime = "raster.op.duration"
	MetricToolRunTime  = "session.tool.duration"
	MetricOutputBytes  = "session.output.bytes"
)
