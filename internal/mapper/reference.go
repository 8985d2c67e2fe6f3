package mapper

import (
	"context"
	"fmt"
	"strings"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

const (
	typeSelect     = "SELECT id, label, description FROM restaurant_types"
	criteriaSelect = "SELECT id, name, description FROM evaluation_criteria"
)

// RestaurantTypeMapper maps the restaurant_types table.
type RestaurantTypeMapper struct{ s *Scope }

func (s *Scope) restaurantType(row typeRow) *domain.RestaurantType {
	return resolve(s, domain.EntityRestaurantType, row.ID, func() *domain.RestaurantType {
		return &domain.RestaurantType{ID: row.ID, Label: row.Label, Description: row.Description}
	})
}

func (m RestaurantTypeMapper) FindByID(ctx context.Context, id int64) (*domain.RestaurantType, error) {
	if t, ok := identitymap.Lookup[*domain.RestaurantType](m.s.identity, domain.EntityRestaurantType, id); ok {
		return t, nil
	}
	var row typeRow
	if err := m.s.tx.Get(ctx, &row, typeSelect+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityRestaurantType, ID: id}
		}
		return nil, m.s.fail("find restaurant type", err)
	}
	return m.s.restaurantType(row), nil
}

func (m RestaurantTypeMapper) FindAll(ctx context.Context) ([]*domain.RestaurantType, error) {
	return m.list(ctx, "find restaurant types", typeSelect+" ORDER BY label")
}

// FindByLabel matches the whole label, ignoring case.
func (m RestaurantTypeMapper) FindByLabel(ctx context.Context, label string) (*domain.RestaurantType, error) {
	found, err := m.list(ctx, "find restaurant type by label", typeSelect+" WHERE LOWER(label) = LOWER(?) ORDER BY id", strings.TrimSpace(label))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound{Entity: domain.EntityRestaurantType, Key: fmt.Sprintf("label %q", label)}
	}
	return found[0], nil
}

func (m RestaurantTypeMapper) Create(ctx context.Context, t *domain.RestaurantType) (*domain.RestaurantType, error) {
	if err := validateType(t); err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx, "INSERT INTO restaurant_types (label, description) VALUES (?, ?)", t.Label, t.Description)
	if err != nil {
		return nil, m.s.fail("insert restaurant type", err)
	}
	t.ID = id
	m.s.identity.Put(domain.EntityRestaurantType, id, t)
	return t, nil
}

func (m RestaurantTypeMapper) Update(ctx context.Context, t *domain.RestaurantType) error {
	if err := validateType(t); err != nil {
		return err
	}
	if err := requireID(domain.EntityRestaurantType, t.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx, "UPDATE restaurant_types SET label = ?, description = ? WHERE id = ?", t.Label, t.Description, t.ID)
	if err != nil {
		return m.s.fail("update restaurant type", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityRestaurantType, ID: t.ID}
	}
	m.s.identity.Put(domain.EntityRestaurantType, t.ID, t)
	return nil
}

func (m RestaurantTypeMapper) Delete(ctx context.Context, t *domain.RestaurantType) error {
	if t == nil {
		return domain.ErrValidation{Entity: domain.EntityRestaurantType, Field: "restaurant_type"}
	}
	return m.DeleteByID(ctx, t.ID)
}

func (m RestaurantTypeMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityRestaurantType, id); err != nil {
		return err
	}
	n, err := m.s.count(ctx, "count restaurants by type", "SELECT COUNT(*) FROM restaurants WHERE type_id = ?", id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrIntegrityViolation{Entity: domain.EntityRestaurantType, ID: id, Dependent: domain.EntityRestaurant}
	}
	return m.s.deleteRow(ctx, domain.EntityRestaurantType, rowstore.TableRestaurantTypes, id)
}

func (m RestaurantTypeMapper) list(ctx context.Context, op, query string, args ...any) ([]*domain.RestaurantType, error) {
	rows, err := selectRows[typeRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RestaurantType, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.s.restaurantType(row))
	}
	return out, nil
}

func validateType(t *domain.RestaurantType) error {
	if t == nil {
		return domain.ErrValidation{Entity: domain.EntityRestaurantType, Field: "restaurant_type"}
	}
	if strings.TrimSpace(t.Label) == "" {
		return domain.ErrValidation{Entity: domain.EntityRestaurantType, Field: "label"}
	}
	return nil
}

// CriteriaMapper maps the evaluation_criteria table.
type CriteriaMapper struct{ s *Scope }

func (s *Scope) criteria(row criteriaRow) *domain.EvaluationCriteria {
	return resolve(s, domain.EntityCriteria, row.ID, func() *domain.EvaluationCriteria {
		return &domain.EvaluationCriteria{ID: row.ID, Name: row.Name, Description: row.Description}
	})
}

func (m CriteriaMapper) FindByID(ctx context.Context, id int64) (*domain.EvaluationCriteria, error) {
	if c, ok := identitymap.Lookup[*domain.EvaluationCriteria](m.s.identity, domain.EntityCriteria, id); ok {
		return c, nil
	}
	var row criteriaRow
	if err := m.s.tx.Get(ctx, &row, criteriaSelect+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityCriteria, ID: id}
		}
		return nil, m.s.fail("find criteria", err)
	}
	return m.s.criteria(row), nil
}

func (m CriteriaMapper) FindAll(ctx context.Context) ([]*domain.EvaluationCriteria, error) {
	return m.list(ctx, "find criteria", criteriaSelect+" ORDER BY id")
}

// FindByName matches the whole name, ignoring case.
func (m CriteriaMapper) FindByName(ctx context.Context, name string) (*domain.EvaluationCriteria, error) {
	found, err := m.list(ctx, "find criteria by name", criteriaSelect+" WHERE LOWER(name) = LOWER(?) ORDER BY id", strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound{Entity: domain.EntityCriteria, Key: fmt.Sprintf("name %q", name)}
	}
	return found[0], nil
}

func (m CriteriaMapper) Create(ctx context.Context, c *domain.EvaluationCriteria) (*domain.EvaluationCriteria, error) {
	if err := validateCriteria(c); err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx, "INSERT INTO evaluation_criteria (name, description) VALUES (?, ?)", c.Name, c.Description)
	if err != nil {
		return nil, m.s.fail("insert criteria", err)
	}
	c.ID = id
	m.s.identity.Put(domain.EntityCriteria, id, c)
	return c, nil
}

func (m CriteriaMapper) Update(ctx context.Context, c *domain.EvaluationCriteria) error {
	if err := validateCriteria(c); err != nil {
		return err
	}
	if err := requireID(domain.EntityCriteria, c.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx, "UPDATE evaluation_criteria SET name = ?, description = ? WHERE id = ?", c.Name, c.Description, c.ID)
	if err != nil {
		return m.s.fail("update criteria", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityCriteria, ID: c.ID}
	}
	m.s.identity.Put(domain.EntityCriteria, c.ID, c)
	return nil
}

func (m CriteriaMapper) Delete(ctx context.Context, c *domain.EvaluationCriteria) error {
	if c == nil {
		return domain.ErrValidation{Entity: domain.EntityCriteria, Field: "criteria"}
	}
	return m.DeleteByID(ctx, c.ID)
}

// DeleteByID refuses to delete a criteria still referenced by grades.
func (m CriteriaMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityCriteria, id); err != nil {
		return err
	}
	n, err := m.s.count(ctx, "count grades by criteria", "SELECT COUNT(*) FROM grades WHERE criteria_id = ?", id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrIntegrityViolation{Entity: domain.EntityCriteria, ID: id, Dependent: domain.EntityGrade}
	}
	return m.s.deleteRow(ctx, domain.EntityCriteria, rowstore.TableCriteria, id)
}

func (m CriteriaMapper) list(ctx context.Context, op, query string, args ...any) ([]*domain.EvaluationCriteria, error) {
	rows, err := selectRows[criteriaRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.EvaluationCriteria, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.s.criteria(row))
	}
	return out, nil
}

func validateCriteria(c *domain.EvaluationCriteria) error {
	if c == nil {
		return domain.ErrValidation{Entity: domain.EntityCriteria, Field: "criteria"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return domain.ErrValidation{Entity: domain.EntityCriteria, Field: "name"}
	}
	return nil
}
