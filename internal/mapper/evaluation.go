package mapper

import (
	"context"
	"strings"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

const basicSelect = "SELECT id, visit_date, liked, ip_address, restaurant_id FROM basic_evaluations"

// completeSelect yields one row per grade, or a single row with null grade
// columns for an evaluation without grades.
const completeSelect = `SELECT e.id, e.visit_date, e.comment, e.username, e.restaurant_id,
	g.id AS grade_id, g.score AS score,
	k.id AS criteria_id, k.name AS criteria_name, k.description AS criteria_description
FROM complete_evaluations e
LEFT JOIN grades g ON g.complete_evaluation_id = e.id
LEFT JOIN evaluation_criteria k ON k.id = g.criteria_id`

const completeOrder = " ORDER BY e.id, g.id"

// BasicEvaluationMapper maps the basic_evaluations table.
type BasicEvaluationMapper struct{ s *Scope }

// owner returns the restaurant instance for id, reusing hint when it matches.
func (s *Scope) owner(ctx context.Context, id int64, hint *domain.Restaurant) (*domain.Restaurant, error) {
	if hint != nil && hint.ID == id {
		return hint, nil
	}
	return s.Restaurants().FindByID(ctx, id)
}

func (s *Scope) basicEvaluation(row basicRow, owner *domain.Restaurant) *domain.BasicEvaluation {
	e := resolve(s, domain.EntityBasicEvaluation, row.ID, func() *domain.BasicEvaluation {
		return &domain.BasicEvaluation{ID: row.ID, VisitDate: row.VisitDate.Time, Like: row.Liked, IPAddress: row.IPAddress}
	})
	e.Restaurant = owner
	return e
}

func (m BasicEvaluationMapper) FindByID(ctx context.Context, id int64) (*domain.BasicEvaluation, error) {
	if e, ok := identitymap.Lookup[*domain.BasicEvaluation](m.s.identity, domain.EntityBasicEvaluation, id); ok {
		return e, nil
	}
	var row basicRow
	if err := m.s.tx.Get(ctx, &row, basicSelect+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityBasicEvaluation, ID: id}
		}
		return nil, m.s.fail("find basic evaluation", err)
	}
	owner, err := m.s.owner(ctx, row.RestaurantID, nil)
	if err != nil {
		return nil, err
	}
	return m.s.basicEvaluation(row, owner), nil
}

func (m BasicEvaluationMapper) FindAll(ctx context.Context) ([]*domain.BasicEvaluation, error) {
	return m.list(ctx, "find basic evaluations", nil, basicSelect+" ORDER BY id")
}

// FindByRestaurant returns the evaluations of one restaurant in id order.
func (m BasicEvaluationMapper) FindByRestaurant(ctx context.Context, restaurantID int64) ([]*domain.BasicEvaluation, error) {
	return m.list(ctx, "find basic evaluations by restaurant", nil, basicSelect+" WHERE restaurant_id = ? ORDER BY id", restaurantID)
}

func (m BasicEvaluationMapper) forRestaurant(ctx context.Context, r *domain.Restaurant) ([]*domain.BasicEvaluation, error) {
	return m.list(ctx, "find basic evaluations by restaurant", r, basicSelect+" WHERE restaurant_id = ? ORDER BY id", r.ID)
}

func (m BasicEvaluationMapper) Create(ctx context.Context, e *domain.BasicEvaluation) (*domain.BasicEvaluation, error) {
	if err := validateBasic(e); err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx,
		"INSERT INTO basic_evaluations (visit_date, liked, ip_address, restaurant_id) VALUES (?, ?, ?, ?)",
		e.VisitDate.UTC(), e.Like, e.IPAddress, e.Restaurant.ID)
	if err != nil {
		return nil, m.s.fail("insert basic evaluation", err)
	}
	e.ID = id
	m.s.identity.Put(domain.EntityBasicEvaluation, id, e)
	attachEvaluation(e.Restaurant, e)
	return e, nil
}

func (m BasicEvaluationMapper) Update(ctx context.Context, e *domain.BasicEvaluation) error {
	if err := validateBasic(e); err != nil {
		return err
	}
	if err := requireID(domain.EntityBasicEvaluation, e.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx,
		"UPDATE basic_evaluations SET visit_date = ?, liked = ?, ip_address = ?, restaurant_id = ? WHERE id = ?",
		e.VisitDate.UTC(), e.Like, e.IPAddress, e.Restaurant.ID, e.ID)
	if err != nil {
		return m.s.fail("update basic evaluation", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityBasicEvaluation, ID: e.ID}
	}
	m.s.identity.Put(domain.EntityBasicEvaluation, e.ID, e)
	return nil
}

func (m BasicEvaluationMapper) Delete(ctx context.Context, e *domain.BasicEvaluation) error {
	if e == nil {
		return domain.ErrValidation{Entity: domain.EntityBasicEvaluation, Field: "evaluation"}
	}
	if err := m.DeleteByID(ctx, e.ID); err != nil {
		return err
	}
	detachEvaluation(e.Restaurant, e.ID, domain.EntityBasicEvaluation)
	return nil
}

func (m BasicEvaluationMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityBasicEvaluation, id); err != nil {
		return err
	}
	e, cached := identitymap.Lookup[*domain.BasicEvaluation](m.s.identity, domain.EntityBasicEvaluation, id)
	if err := m.s.deleteRow(ctx, domain.EntityBasicEvaluation, rowstore.TableBasicEvaluations, id); err != nil {
		return err
	}
	if cached {
		detachEvaluation(e.Restaurant, id, domain.EntityBasicEvaluation)
	}
	return nil
}

// DeleteByRestaurant removes every basic evaluation of a restaurant and
// returns how many rows were deleted.
func (m BasicEvaluationMapper) DeleteByRestaurant(ctx context.Context, restaurantID int64) (int64, error) {
	ids, err := m.s.ids(ctx, "list basic evaluations by restaurant", "SELECT id FROM basic_evaluations WHERE restaurant_id = ?", restaurantID)
	if err != nil {
		return 0, err
	}
	n, err := m.s.tx.Exec(ctx, "DELETE FROM basic_evaluations WHERE restaurant_id = ?", restaurantID)
	if err != nil {
		return 0, m.s.fail("delete basic evaluations by restaurant", err)
	}
	for _, id := range ids {
		m.s.identity.Remove(domain.EntityBasicEvaluation, id)
	}
	return n, nil
}

func (m BasicEvaluationMapper) list(ctx context.Context, op string, hint *domain.Restaurant, query string, args ...any) ([]*domain.BasicEvaluation, error) {
	rows, err := selectRows[basicRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.BasicEvaluation, 0, len(rows))
	for _, row := range rows {
		owner, err := m.s.owner(ctx, row.RestaurantID, hint)
		if err != nil {
			return nil, err
		}
		hint = owner
		out = append(out, m.s.basicEvaluation(row, owner))
	}
	return out, nil
}

func validateBasic(e *domain.BasicEvaluation) error {
	switch {
	case e == nil:
		return domain.ErrValidation{Entity: domain.EntityBasicEvaluation, Field: "evaluation"}
	case e.Restaurant == nil || e.Restaurant.ID == 0:
		return domain.ErrValidation{Entity: domain.EntityBasicEvaluation, Field: "restaurant"}
	case e.VisitDate.IsZero():
		return domain.ErrValidation{Entity: domain.EntityBasicEvaluation, Field: "visit_date"}
	}
	return nil
}

// CompleteEvaluationMapper maps complete_evaluations together with their grades.
type CompleteEvaluationMapper struct{ s *Scope }

func (m CompleteEvaluationMapper) FindByID(ctx context.Context, id int64) (*domain.CompleteEvaluation, error) {
	if e, ok := identitymap.Lookup[*domain.CompleteEvaluation](m.s.identity, domain.EntityCompleteEvaluation, id); ok {
		return e, nil
	}
	found, err := m.load(ctx, "find complete evaluation", nil, completeSelect+" WHERE e.id = ?"+completeOrder, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound{Entity: domain.EntityCompleteEvaluation, ID: id}
	}
	return found[0], nil
}

func (m CompleteEvaluationMapper) FindAll(ctx context.Context) ([]*domain.CompleteEvaluation, error) {
	return m.load(ctx, "find complete evaluations", nil, completeSelect+completeOrder)
}

// FindByRestaurant returns the evaluations of one restaurant with grades attached.
func (m CompleteEvaluationMapper) FindByRestaurant(ctx context.Context, restaurantID int64) ([]*domain.CompleteEvaluation, error) {
	return m.load(ctx, "find complete evaluations by restaurant", nil,
		completeSelect+" WHERE e.restaurant_id = ?"+completeOrder, restaurantID)
}

// FindByUsername matches the whole username, ignoring case.
func (m CompleteEvaluationMapper) FindByUsername(ctx context.Context, username string) ([]*domain.CompleteEvaluation, error) {
	return m.load(ctx, "find complete evaluations by username", nil,
		completeSelect+" WHERE LOWER(e.username) = LOWER(?)"+completeOrder, strings.TrimSpace(username))
}

func (m CompleteEvaluationMapper) forRestaurant(ctx context.Context, r *domain.Restaurant) ([]*domain.CompleteEvaluation, error) {
	return m.load(ctx, "find complete evaluations by restaurant", r,
		completeSelect+" WHERE e.restaurant_id = ?"+completeOrder, r.ID)
}

func (m CompleteEvaluationMapper) load(ctx context.Context, op string, hint *domain.Restaurant, query string, args ...any) ([]*domain.CompleteEvaluation, error) {
	rows, err := selectRows[completeRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	return m.s.groupComplete(ctx, rows, hint)
}

// Create inserts e and every grade it carries. All grades are validated
// before the first insert.
func (m CompleteEvaluationMapper) Create(ctx context.Context, e *domain.CompleteEvaluation) (*domain.CompleteEvaluation, error) {
	if err := validateComplete(e); err != nil {
		return nil, err
	}
	for _, g := range e.Grades {
		if err := validateGradeFields(g); err != nil {
			return nil, err
		}
	}
	id, err := m.s.tx.Insert(ctx,
		"INSERT INTO complete_evaluations (visit_date, comment, username, restaurant_id) VALUES (?, ?, ?, ?)",
		e.VisitDate.UTC(), e.Comment, e.Username, e.Restaurant.ID)
	if err != nil {
		return nil, m.s.fail("insert complete evaluation", err)
	}
	grades := e.Grades
	saved := make([]gradeState, len(grades))
	for i, g := range grades {
		saved[i] = gradeState{id: g.ID, evaluation: g.Evaluation}
	}
	e.ID = id
	e.Grades = make([]*domain.Grade, 0, len(grades))
	for _, g := range grades {
		g.Evaluation = e
		if _, err := m.s.Grades().Create(ctx, g); err != nil {
			m.abandon(e, grades, saved)
			return nil, err
		}
	}
	m.s.identity.Put(domain.EntityCompleteEvaluation, id, e)
	attachEvaluation(e.Restaurant, e)
	return e, nil
}

type gradeState struct {
	id         int64
	evaluation *domain.CompleteEvaluation
}

// abandon puts e and its grades back the way the caller passed them after
// a grade insert failed part way.
func (m CompleteEvaluationMapper) abandon(e *domain.CompleteEvaluation, grades []*domain.Grade, saved []gradeState) {
	for _, g := range e.Grades {
		m.s.identity.Remove(domain.EntityGrade, g.ID)
	}
	for i, g := range grades {
		g.ID = saved[i].id
		g.Evaluation = saved[i].evaluation
	}
	e.Grades = grades
	e.ID = 0
}

// Update writes the evaluation row. Grades are written through GradeMapper.
func (m CompleteEvaluationMapper) Update(ctx context.Context, e *domain.CompleteEvaluation) error {
	if err := validateComplete(e); err != nil {
		return err
	}
	if err := requireID(domain.EntityCompleteEvaluation, e.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx,
		"UPDATE complete_evaluations SET visit_date = ?, comment = ?, username = ?, restaurant_id = ? WHERE id = ?",
		e.VisitDate.UTC(), e.Comment, e.Username, e.Restaurant.ID, e.ID)
	if err != nil {
		return m.s.fail("update complete evaluation", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityCompleteEvaluation, ID: e.ID}
	}
	m.s.identity.Put(domain.EntityCompleteEvaluation, e.ID, e)
	return nil
}

func (m CompleteEvaluationMapper) Delete(ctx context.Context, e *domain.CompleteEvaluation) error {
	if e == nil {
		return domain.ErrValidation{Entity: domain.EntityCompleteEvaluation, Field: "evaluation"}
	}
	if err := m.DeleteByID(ctx, e.ID); err != nil {
		return err
	}
	detachEvaluation(e.Restaurant, e.ID, domain.EntityCompleteEvaluation)
	return nil
}

// DeleteByID deletes the evaluation's grades first, then the evaluation.
func (m CompleteEvaluationMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityCompleteEvaluation, id); err != nil {
		return err
	}
	if _, err := m.s.Grades().DeleteByEvaluation(ctx, id); err != nil {
		return err
	}
	e, cached := identitymap.Lookup[*domain.CompleteEvaluation](m.s.identity, domain.EntityCompleteEvaluation, id)
	if err := m.s.deleteRow(ctx, domain.EntityCompleteEvaluation, rowstore.TableCompleteEvaluations, id); err != nil {
		return err
	}
	if cached {
		detachEvaluation(e.Restaurant, id, domain.EntityCompleteEvaluation)
	}
	return nil
}

// DeleteByRestaurant removes the complete evaluations of a restaurant. Their
// grades must already be gone.
func (m CompleteEvaluationMapper) DeleteByRestaurant(ctx context.Context, restaurantID int64) (int64, error) {
	ids, err := m.s.ids(ctx, "list complete evaluations by restaurant", "SELECT id FROM complete_evaluations WHERE restaurant_id = ?", restaurantID)
	if err != nil {
		return 0, err
	}
	n, err := m.s.tx.Exec(ctx, "DELETE FROM complete_evaluations WHERE restaurant_id = ?", restaurantID)
	if err != nil {
		return 0, m.s.fail("delete complete evaluations by restaurant", err)
	}
	for _, id := range ids {
		m.s.identity.Remove(domain.EntityCompleteEvaluation, id)
	}
	return n, nil
}

func validateComplete(e *domain.CompleteEvaluation) error {
	switch {
	case e == nil:
		return domain.ErrValidation{Entity: domain.EntityCompleteEvaluation, Field: "evaluation"}
	case e.Restaurant == nil || e.Restaurant.ID == 0:
		return domain.ErrValidation{Entity: domain.EntityCompleteEvaluation, Field: "restaurant"}
	case strings.TrimSpace(e.Username) == "":
		return domain.ErrValidation{Entity: domain.EntityCompleteEvaluation, Field: "username"}
	case e.VisitDate.IsZero():
		return domain.ErrValidation{Entity: domain.EntityCompleteEvaluation, Field: "visit_date"}
	}
	return nil
}

// attachEvaluation appends e to its owner's collection unless already present.
func attachEvaluation(r *domain.Restaurant, e domain.Evaluation) {
	if r == nil {
		return
	}
	for _, existing := range r.Evaluations {
		if existing == e {
			return
		}
	}
	r.Evaluations = append(r.Evaluations, e)
}

func detachEvaluation(r *domain.Restaurant, id int64, typ domain.EntityType) {
	if r == nil {
		return
	}
	kept := r.Evaluations[:0]
	for _, e := range r.Evaluations {
		if e.EvaluationID() == id && evaluationType(e) == typ {
			continue
		}
		kept = append(kept, e)
	}
	r.Evaluations = kept
}

func evaluationType(e domain.Evaluation) domain.EntityType {
	if _, ok := e.(*domain.CompleteEvaluation); ok {
		return domain.EntityCompleteEvaluation
	}
	return domain.EntityBasicEvaluation
}
