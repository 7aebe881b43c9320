package core

import (
	"context"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"time"
)

// Clock supplies timestamps for step records.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logger used by the service layer.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DiagLogger adapts a *diag.Logger to Logger. Key/value pairs become fields.
type DiagLogger struct {
	Log *diag.Logger
}

func (d DiagLogger) emit(level diag.Level, msg string, kv []any) {
	if d.Log == nil {
		return
	}
	var fields diag.Fields
	if len(kv) > 0 {
		fields = make(diag.Fields, len(kv)/2+1)
		for i := 0; i < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			if i+1 < len(kv) {
				fields[key] = kv[i+1]
			} else {
				fields[key] = nil
			}
		}
	}
	d.Log.Log(level, fields, msg)
}

func (d DiagLogger) Debug(msg string, kv ...any) { d.emit(diag.LevelDebug, msg, kv) }
func (d DiagLogger) Info(msg string, kv ...any)  { d.emit(diag.LevelInfo, msg, kv) }
func (d DiagLogger) Warn(msg string, kv ...any)  { d.emit(diag.LevelWarning, msg, kv) }
func (d DiagLogger) Error(msg string, kv ...any) { d.emit(diag.LevelError, msg, kv) }

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// StepObserver is implemented by recorders that also track per-step data.
type StepObserver interface {
	ObserveStep(ctx context.Context, brain string, unsetContainers int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once the traced operation finishes.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock used for record timestamps.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithPublisher registers a sink that receives every recorded step.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// WithRemapper overrides how global entity names and categories are
// replaced by positional placeholders in stored schemas.
func WithRemapper(r domain.NameRemapper) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.remapper = r
		}
	}
}

// WithDiagnostics routes attribute diagnostics of every brain spec the
// service builds to log.
func WithDiagnostics(log *diag.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.diag = log
		}
	}
}
