package core

import (
	"time"

	"guideresto/internal/logging"
)

type serviceOptions struct {
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	lockWait time.Duration
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  logging.Noop(),
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithLogger sets the service logger. Nil is ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for timestamps and default visit dates.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder receives an entry for every mutating operation.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder observes every operation. A recorder that also
// implements LockObserver receives edit-session lock outcomes.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer wraps every operation in a span.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLockWait bounds how long an edit session waits for a restaurant lock.
// Zero, the default, fails immediately.
func WithLockWait(wait time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if wait > 0 {
			o.lockWait = wait
		}
	}
}
