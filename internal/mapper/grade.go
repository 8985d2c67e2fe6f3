package mapper

import (
	"context"
	"fmt"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

const gradeSelect = `SELECT g.id, g.score, g.complete_evaluation_id, g.criteria_id,
	k.name AS criteria_name, k.description AS criteria_description
FROM grades g
JOIN evaluation_criteria k ON k.id = g.criteria_id`

// GradeMapper maps the grades table. A grade is always returned attached to
// its complete evaluation, so loading one grade loads its siblings too.
type GradeMapper struct{ s *Scope }

func (m GradeMapper) FindByID(ctx context.Context, id int64) (*domain.Grade, error) {
	if g, ok := identitymap.Lookup[*domain.Grade](m.s.identity, domain.EntityGrade, id); ok {
		return g, nil
	}
	var row gradeRow
	if err := m.s.tx.Get(ctx, &row, gradeSelect+" WHERE g.id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityGrade, ID: id}
		}
		return nil, m.s.fail("find grade", err)
	}
	return m.grade(ctx, row)
}

func (m GradeMapper) FindAll(ctx context.Context) ([]*domain.Grade, error) {
	return m.list(ctx, "find grades", gradeSelect+" ORDER BY g.id")
}

func (m GradeMapper) FindByEvaluation(ctx context.Context, evaluationID int64) ([]*domain.Grade, error) {
	return m.list(ctx, "find grades by evaluation", gradeSelect+" WHERE g.complete_evaluation_id = ? ORDER BY g.id", evaluationID)
}

func (m GradeMapper) FindByCriteria(ctx context.Context, criteriaID int64) ([]*domain.Grade, error) {
	return m.list(ctx, "find grades by criteria", gradeSelect+" WHERE g.criteria_id = ? ORDER BY g.id", criteriaID)
}

// FindOne returns the grade an evaluation gave to one criteria.
func (m GradeMapper) FindOne(ctx context.Context, evaluationID, criteriaID int64) (*domain.Grade, error) {
	if g, ok := identitymap.Find(m.s.identity, domain.EntityGrade, func(g *domain.Grade) bool {
		return g.Evaluation != nil && g.Criteria != nil && g.Evaluation.ID == evaluationID && g.Criteria.ID == criteriaID
	}); ok {
		return g, nil
	}
	var row gradeRow
	err := m.s.tx.Get(ctx, &row, gradeSelect+" WHERE g.complete_evaluation_id = ? AND g.criteria_id = ?", evaluationID, criteriaID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityGrade, Key: fmt.Sprintf("evaluation %d criteria %d", evaluationID, criteriaID)}
		}
		return nil, m.s.fail("find grade by evaluation and criteria", err)
	}
	return m.grade(ctx, row)
}

func (m GradeMapper) Create(ctx context.Context, g *domain.Grade) (*domain.Grade, error) {
	if err := validateGrade(g); err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx,
		"INSERT INTO grades (score, complete_evaluation_id, criteria_id) VALUES (?, ?, ?)",
		g.Score, g.Evaluation.ID, g.Criteria.ID)
	if err != nil {
		return nil, m.s.fail("insert grade", err)
	}
	g.ID = id
	m.s.identity.Put(domain.EntityGrade, id, g)
	attachGrade(g.Evaluation, g)
	return g, nil
}

func (m GradeMapper) Update(ctx context.Context, g *domain.Grade) error {
	if err := validateGrade(g); err != nil {
		return err
	}
	if err := requireID(domain.EntityGrade, g.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx,
		"UPDATE grades SET score = ?, complete_evaluation_id = ?, criteria_id = ? WHERE id = ?",
		g.Score, g.Evaluation.ID, g.Criteria.ID, g.ID)
	if err != nil {
		return m.s.fail("update grade", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityGrade, ID: g.ID}
	}
	m.s.identity.Put(domain.EntityGrade, g.ID, g)
	return nil
}

func (m GradeMapper) Delete(ctx context.Context, g *domain.Grade) error {
	if g == nil {
		return domain.ErrValidation{Entity: domain.EntityGrade, Field: "grade"}
	}
	if err := m.DeleteByID(ctx, g.ID); err != nil {
		return err
	}
	detachGrade(g.Evaluation, g.ID)
	return nil
}

func (m GradeMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityGrade, id); err != nil {
		return err
	}
	g, cached := identitymap.Lookup[*domain.Grade](m.s.identity, domain.EntityGrade, id)
	if err := m.s.deleteRow(ctx, domain.EntityGrade, rowstore.TableGrades, id); err != nil {
		return err
	}
	if cached {
		detachGrade(g.Evaluation, id)
	}
	return nil
}

// DeleteByEvaluation removes every grade of one complete evaluation.
func (m GradeMapper) DeleteByEvaluation(ctx context.Context, evaluationID int64) (int64, error) {
	ids, err := m.s.ids(ctx, "list grades by evaluation", "SELECT id FROM grades WHERE complete_evaluation_id = ?", evaluationID)
	if err != nil {
		return 0, err
	}
	n, err := m.s.tx.Exec(ctx, "DELETE FROM grades WHERE complete_evaluation_id = ?", evaluationID)
	if err != nil {
		return 0, m.s.fail("delete grades by evaluation", err)
	}
	m.evict(ids)
	return n, nil
}

// DeleteByRestaurant removes the grades of every complete evaluation of a restaurant.
func (m GradeMapper) DeleteByRestaurant(ctx context.Context, restaurantID int64) (int64, error) {
	ids, err := m.s.ids(ctx, "list grades by restaurant",
		"SELECT g.id FROM grades g JOIN complete_evaluations e ON e.id = g.complete_evaluation_id WHERE e.restaurant_id = ?", restaurantID)
	if err != nil {
		return 0, err
	}
	n, err := m.s.tx.Exec(ctx,
		"DELETE FROM grades WHERE complete_evaluation_id IN (SELECT id FROM complete_evaluations WHERE restaurant_id = ?)", restaurantID)
	if err != nil {
		return 0, m.s.fail("delete grades by restaurant", err)
	}
	m.evict(ids)
	return n, nil
}

func (m GradeMapper) evict(ids []int64) {
	for _, id := range ids {
		if g, ok := identitymap.Lookup[*domain.Grade](m.s.identity, domain.EntityGrade, id); ok {
			detachGrade(g.Evaluation, id)
		}
		m.s.identity.Remove(domain.EntityGrade, id)
	}
}

// grade resolves a grade through its evaluation, which registers the
// evaluation's grades in the identity map.
func (m GradeMapper) grade(ctx context.Context, row gradeRow) (*domain.Grade, error) {
	if g, ok := identitymap.Lookup[*domain.Grade](m.s.identity, domain.EntityGrade, row.ID); ok {
		return g, nil
	}
	evaluation, err := m.s.CompleteEvaluations().FindByID(ctx, row.EvaluationID)
	if err != nil {
		return nil, err
	}
	criteria := m.s.criteria(criteriaRow{ID: row.CriteriaID, Name: row.CriteriaName, Description: row.CriteriaDescription})
	g := resolve(m.s, domain.EntityGrade, row.ID, func() *domain.Grade {
		return &domain.Grade{ID: row.ID, Score: row.Score}
	})
	g.Evaluation = evaluation
	g.Criteria = criteria
	attachGrade(evaluation, g)
	return g, nil
}

func (m GradeMapper) list(ctx context.Context, op, query string, args ...any) ([]*domain.Grade, error) {
	rows, err := selectRows[gradeRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Grade, 0, len(rows))
	for _, row := range rows {
		g, err := m.grade(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// validateGradeFields checks everything but the owning evaluation, which
// may not be persisted yet when grades travel with a new evaluation.
func validateGradeFields(g *domain.Grade) error {
	switch {
	case g == nil:
		return domain.ErrValidation{Entity: domain.EntityGrade, Field: "grade"}
	case g.Criteria == nil || g.Criteria.ID == 0:
		return domain.ErrValidation{Entity: domain.EntityGrade, Field: "criteria"}
	case g.Score < domain.MinScore || g.Score > domain.MaxScore:
		return domain.ErrValidation{Entity: domain.EntityGrade, Field: "score", Reason: "must be between 1 and 5"}
	}
	return nil
}

func validateGrade(g *domain.Grade) error {
	if err := validateGradeFields(g); err != nil {
		return err
	}
	if g.Evaluation == nil || g.Evaluation.ID == 0 {
		return domain.ErrValidation{Entity: domain.EntityGrade, Field: "evaluation"}
	}
	return nil
}

func attachGrade(e *domain.CompleteEvaluation, g *domain.Grade) {
	if e == nil {
		return
	}
	for _, existing := range e.Grades {
		if existing == g {
			return
		}
	}
	e.Grades = append(e.Grades, g)
}

func detachGrade(e *domain.CompleteEvaluation, id int64) {
	if e == nil {
		return
	}
	kept := e.Grades[:0]
	for _, g := range e.Grades {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	e.Grades = kept
}
