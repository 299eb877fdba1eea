// Package observability defines the logging, metrics, and tracing contracts
// used throughout the viewer. All hooks default to no-op implementations so
// the library stays silent unless the embedding application opts in.
package observability

import (
	"context"
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

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type durationField struct {
	key string
	val time.Duration
}

func (f durationField) Key() string        { return f.key }
func (f durationField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field                 { return stringField{key, value} }
func Int(key string, value int) Field                { return intField{key, value} }
func Float64(key string, value float64) Field        { return float64Field{key, value} }
func Duration(key string, value time.Duration) Field { return durationField{key, value} }
func Error(key string, err error) Field              { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Meter receives viewer measurements. Counters are monotonic deltas,
// observations are point-in-time samples (durations in seconds).
type Meter interface {
	Count(name string, delta int)
	Observe(name string, value float64)
}

type nopMeter struct{}

func (nopMeter) Count(string, int)       {}
func (nopMeter) Observe(string, float64) {}

// NopMeter returns a meter that discards all measurements.
func NopMeter() Meter { return nopMeter{} }

// Tracer provides distributed tracing hooks for library operations.
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

// Standard metric names emitted by the viewer.
const (
	MetricOpenTime          = "viewer.open.duration"
	MetricRenderTime        = "viewer.render.duration"
	MetricTextLayerTime     = "viewer.textlayer.duration"
	MetricPagesMaterialized = "viewer.pages.materialized"
	MetricPagesRevoked      = "viewer.pages.revoked"
	MetricRenderFailures    = "viewer.render.failures"
	MetricVirtualizePasses  = "viewer.virtualize.passes"
	MetricHighlightCount    = "viewer.highlights.count"
)
