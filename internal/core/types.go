package core

import (
	"context"
	"time"

	"guideresto/internal/logging"
	"guideresto/pkg/domain"
)

// Logger is the structured logger the service writes to.
type Logger = logging.Logger

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// LockObserver is implemented by recorders that also count edit-session
// lock outcomes.
type LockObserver interface {
	ObserveLock(ctx context.Context, status LockStatus)
}

// Tracer starts one span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan ends with the operation error, nil on success.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome stored in an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditAction classifies a mutating operation.
type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    AuditAction
	EntityID  int64
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
