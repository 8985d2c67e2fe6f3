package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"guideresto/internal/logging"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation totals through expvar:
// summed latency in milliseconds, result counters and lock outcomes.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	locks     map[string]int64
}

// ExpvarMetricsSnapshot is a copy of the recorded totals.
type ExpvarMetricsSnapshot struct {
	DurationsMS  map[string]float64          `json:"durations_ms_total"`
	Results      map[string]map[string]int64 `json:"results_total"`
	LockOutcomes map[string]int64            `json:"lock_outcomes_total"`
	RecordedAt   time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated guideresto_service_metrics_<n> name when empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("guideresto_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		locks:     make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

func (r *ExpvarMetricsRecorder) Name() string { return r.name }

func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[op] = cpy
	}
	locks := make(map[string]int64, len(r.locks))
	for outcome, n := range r.locks {
		locks[outcome] = n
	}
	return ExpvarMetricsSnapshot{
		DurationsMS:  durations,
		Results:      results,
		LockOutcomes: locks,
		RecordedAt:   time.Now().UTC(),
	}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	status := statusLabel(success)

	r.mu.Lock()
	r.durations[operation] += ms
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// ObserveLock implements LockObserver.
func (r *ExpvarMetricsRecorder) ObserveLock(_ context.Context, status LockStatus) {
	r.mu.Lock()
	r.locks[status.String()]++
	r.mu.Unlock()
}

// PrometheusMetricsRecorder exports operation counters, latency histograms
// and edit-session lock outcomes.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	locks      *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the guideresto collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	rec := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guideresto_operations_total",
			Help: "Service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guideresto_operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		locks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guideresto_edit_session_outcomes_total",
			Help: "Restaurant lock attempts by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{rec.operations, rec.durations, rec.locks} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, statusLabel(success)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLock implements LockObserver.
func (r *PrometheusMetricsRecorder) ObserveLock(_ context.Context, status LockStatus) {
	r.locks.WithLabelValues(status.String()).Inc()
}

func statusLabel(success bool) string {
	if success {
		return string(AuditStatusSuccess)
	}
	return string(AuditStatusError)
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and keeps them for Entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer writes to w; a nil writer only retains entries.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     statusLabel(err == nil),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}

// LogAuditRecorder writes audit entries to a logger at info level.
type LogAuditRecorder struct {
	logger Logger
}

func NewLogAuditRecorder(logger Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logging.OrNoop(logger)}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", entry.Entity,
		"action", entry.Action,
		"entity_id", entry.EntityID,
		"status", entry.Status,
		"duration", entry.Duration,
	}
	if entry.Error != "" {
		args = append(args, "error", entry.Error)
	}
	r.logger.Info("audit", args...)
}
