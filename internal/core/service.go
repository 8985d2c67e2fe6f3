package core

import (
	"context"
	"time"

	"guideresto/internal/infra/rowstore"
	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// Service is the caller surface of the directory. Every operation runs in
// its own scope, so results from separate calls never share instances.
type Service struct {
	gateway rowstore.Gateway
	edits   *Manager
	clock   Clock
	now     func() time.Time
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService builds a service over gateway.
func NewService(gateway rowstore.Gateway, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	edits := NewManager(gateway, cfg.logger, cfg.lockWait)
	if observer, ok := cfg.metrics.(LockObserver); ok {
		edits.observer = observer
	}
	return &Service{
		gateway: gateway,
		edits:   edits,
		clock:   cfg.clock,
		now:     cfg.clock.Now,
		logger:  cfg.logger,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// Gateway returns the underlying row store gateway.
func (s *Service) Gateway() rowstore.Gateway { return s.gateway }

// Edits returns the edit-session manager for callers that hold their own scope.
func (s *Service) Edits() *Manager { return s.edits }

// InScope runs fn in one scope, committing when it returns nil. Lookups
// made through the scope share instances.
func (s *Service) InScope(ctx context.Context, fn func(*mapper.Scope) error) error {
	return s.run(ctx, "in_scope", func(ctx context.Context) (int64, error) {
		return 0, mapper.Run(ctx, s.gateway, s.logger, fn)
	})
}

type operationMeta struct {
	entity domain.EntityType
	action AuditAction
}

// auditedOperations lists the mutating operations that produce audit entries.
var auditedOperations = map[string]operationMeta{
	"create_city":                {domain.EntityCity, ActionCreate},
	"update_city":                {domain.EntityCity, ActionUpdate},
	"delete_city":                {domain.EntityCity, ActionDelete},
	"create_restaurant_type":     {domain.EntityRestaurantType, ActionCreate},
	"update_restaurant_type":     {domain.EntityRestaurantType, ActionUpdate},
	"delete_restaurant_type":     {domain.EntityRestaurantType, ActionDelete},
	"create_criteria":            {domain.EntityCriteria, ActionCreate},
	"update_criteria":            {domain.EntityCriteria, ActionUpdate},
	"delete_criteria":            {domain.EntityCriteria, ActionDelete},
	"create_restaurant":          {domain.EntityRestaurant, ActionCreate},
	"update_restaurant":          {domain.EntityRestaurant, ActionUpdate},
	"delete_restaurant":          {domain.EntityRestaurant, ActionDelete},
	"create_basic_evaluation":    {domain.EntityBasicEvaluation, ActionCreate},
	"delete_basic_evaluation":    {domain.EntityBasicEvaluation, ActionDelete},
	"create_complete_evaluation": {domain.EntityCompleteEvaluation, ActionCreate},
	"delete_complete_evaluation": {domain.EntityCompleteEvaluation, ActionDelete},
	"add_grade":                  {domain.EntityGrade, ActionCreate},
	"remove_grade":               {domain.EntityGrade, ActionDelete},
}

// run wraps one operation with tracing, metrics, logging and auditing. fn
// returns the id of the entity it touched, zero when there is none.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (int64, error)) error {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	id, err := fn(ctx)
	duration := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", id, "error", err)
		s.recordAudit(ctx, op, id, start, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", id, "duration", duration)
	s.recordAudit(ctx, op, id, start, duration, nil)
	return nil
}

// scoped is run around a single mapper scope.
func (s *Service) scoped(ctx context.Context, op string, fn func(ctx context.Context, sc *mapper.Scope) (int64, error)) error {
	return s.run(ctx, op, func(ctx context.Context) (int64, error) {
		var id int64
		err := mapper.Run(ctx, s.gateway, s.logger, func(sc *mapper.Scope) error {
			var err error
			id, err = fn(ctx, sc)
			return err
		})
		return id, err
	})
}

func (s *Service) recordAudit(ctx context.Context, op string, id int64, at time.Time, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  id,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: at,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
