package core

import (
	"context"

	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// CreateBasicEvaluation records a like or dislike. A zero visit date is
// replaced by the service clock.
func (s *Service) CreateBasicEvaluation(ctx context.Context, e *domain.BasicEvaluation) (*domain.BasicEvaluation, error) {
	var out *domain.BasicEvaluation
	err := s.scoped(ctx, "create_basic_evaluation", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if e != nil && e.VisitDate.IsZero() {
			e.VisitDate = s.now()
		}
		var err error
		if out, err = sc.BasicEvaluations().Create(ctx, e); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

// CreateCompleteEvaluation inserts e and the grades it carries in one
// transaction. A zero visit date is replaced by the service clock.
func (s *Service) CreateCompleteEvaluation(ctx context.Context, e *domain.CompleteEvaluation) (*domain.CompleteEvaluation, error) {
	var out *domain.CompleteEvaluation
	err := s.scoped(ctx, "create_complete_evaluation", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if e != nil && e.VisitDate.IsZero() {
			e.VisitDate = s.now()
		}
		var err error
		if out, err = sc.CompleteEvaluations().Create(ctx, e); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

func (s *Service) DeleteBasicEvaluation(ctx context.Context, id int64) error {
	return s.scoped(ctx, "delete_basic_evaluation", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.BasicEvaluations().DeleteByID(ctx, id)
	})
}

// DeleteCompleteEvaluation removes the evaluation and its grades.
func (s *Service) DeleteCompleteEvaluation(ctx context.Context, id int64) error {
	return s.scoped(ctx, "delete_complete_evaluation", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.CompleteEvaluations().DeleteByID(ctx, id)
	})
}

func (s *Service) CompleteEvaluationsByUsername(ctx context.Context, username string) ([]*domain.CompleteEvaluation, error) {
	var out []*domain.CompleteEvaluation
	err := s.scoped(ctx, "find_evaluations_by_username", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.CompleteEvaluations().FindByUsername(ctx, username)
		return 0, err
	})
	return out, err
}

// EvaluationsByRestaurant returns basic evaluations followed by complete
// ones, each group ordered by id.
func (s *Service) EvaluationsByRestaurant(ctx context.Context, restaurantID int64) ([]domain.Evaluation, error) {
	var out []domain.Evaluation
	err := s.scoped(ctx, "find_evaluations_by_restaurant", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		r, err := sc.Aggregates().Load(ctx, restaurantID)
		if err != nil {
			return restaurantID, err
		}
		out = r.Evaluations
		return restaurantID, nil
	})
	return out, err
}

// AddGrade scores one more criteria of a persisted complete evaluation.
func (s *Service) AddGrade(ctx context.Context, g *domain.Grade) (*domain.Grade, error) {
	var out *domain.Grade
	err := s.scoped(ctx, "add_grade", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		if out, err = sc.Grades().Create(ctx, g); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

func (s *Service) RemoveGrade(ctx context.Context, id int64) error {
	return s.scoped(ctx, "remove_grade", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.Grades().DeleteByID(ctx, id)
	})
}

func (s *Service) GradesByCriteria(ctx context.Context, criteriaID int64) ([]*domain.Grade, error) {
	var out []*domain.Grade
	err := s.scoped(ctx, "find_grades_by_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Grades().FindByCriteria(ctx, criteriaID)
		return criteriaID, err
	})
	return out, err
}
