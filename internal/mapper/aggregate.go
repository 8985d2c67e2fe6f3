package mapper

import (
	"context"

	"guideresto/pkg/domain"
)

// AggregateLoader assembles a restaurant with its complete evaluation
// collection: basic evaluations first, then complete evaluations with their
// grades, each group in id order.
type AggregateLoader struct{ s *Scope }

// Load returns the fully assembled restaurant id.
func (l AggregateLoader) Load(ctx context.Context, id int64) (*domain.Restaurant, error) {
	r, err := l.s.Restaurants().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.Reload(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadMany assembles each restaurant in ids, in the given order.
func (l AggregateLoader) LoadMany(ctx context.Context, ids []int64) ([]*domain.Restaurant, error) {
	out := make([]*domain.Restaurant, 0, len(ids))
	for _, id := range ids {
		r, err := l.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadAll assembles every restaurant with three queries in total.
func (l AggregateLoader) LoadAll(ctx context.Context) ([]*domain.Restaurant, error) {
	restaurants, err := l.s.Restaurants().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	basics, err := l.s.BasicEvaluations().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	completes, err := l.s.CompleteEvaluations().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	collected := make(map[int64][]domain.Evaluation, len(restaurants))
	for _, e := range basics {
		collected[e.Restaurant.ID] = append(collected[e.Restaurant.ID], e)
	}
	for _, e := range completes {
		collected[e.Restaurant.ID] = append(collected[e.Restaurant.ID], e)
	}
	for _, r := range restaurants {
		r.Evaluations = append([]domain.Evaluation{}, collected[r.ID]...)
	}
	return restaurants, nil
}

// Reload replaces r's evaluation collection with the stored one.
func (l AggregateLoader) Reload(ctx context.Context, r *domain.Restaurant) error {
	if r == nil || r.ID == 0 {
		return domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "id"}
	}
	basics, err := l.s.BasicEvaluations().forRestaurant(ctx, r)
	if err != nil {
		return err
	}
	completes, err := l.s.CompleteEvaluations().forRestaurant(ctx, r)
	if err != nil {
		return err
	}
	evaluations := make([]domain.Evaluation, 0, len(basics)+len(completes))
	for _, e := range basics {
		evaluations = append(evaluations, e)
	}
	for _, e := range completes {
		evaluations = append(evaluations, e)
	}
	r.Evaluations = evaluations
	return nil
}

// groupComplete folds left-joined evaluation rows into evaluations in
// first-seen order. A row with a null grade id contributes the evaluation
// alone, so an evaluation without grades keeps an empty slice.
func (s *Scope) groupComplete(ctx context.Context, rows []completeRow, hint *domain.Restaurant) ([]*domain.CompleteEvaluation, error) {
	out := []*domain.CompleteEvaluation{}
	seen := make(map[int64]*domain.CompleteEvaluation)
	for _, row := range rows {
		e, ok := seen[row.ID]
		if !ok {
			owner, err := s.owner(ctx, row.RestaurantID, hint)
			if err != nil {
				return nil, err
			}
			hint = owner
			e = resolve(s, domain.EntityCompleteEvaluation, row.ID, func() *domain.CompleteEvaluation {
				return &domain.CompleteEvaluation{ID: row.ID, VisitDate: row.VisitDate.Time, Comment: row.Comment, Username: row.Username}
			})
			e.Restaurant = owner
			e.Grades = []*domain.Grade{}
			seen[row.ID] = e
			out = append(out, e)
		}
		if !row.GradeID.Valid {
			continue
		}
		criteria := s.criteria(criteriaRow{ID: row.CriteriaID.Int64, Name: row.CriteriaName.String, Description: row.CriteriaDescription.String})
		g := resolve(s, domain.EntityGrade, row.GradeID.Int64, func() *domain.Grade {
			return &domain.Grade{ID: row.GradeID.Int64, Score: int(row.Score.Int64)}
		})
		g.Evaluation = e
		g.Criteria = criteria
		e.Grades = append(e.Grades, g)
	}
	return out, nil
}
