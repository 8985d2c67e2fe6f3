package mapper

import (
	"context"
	"strings"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

// restaurantSelect joins type and city so a restaurant list costs one query.
const restaurantSelect = `SELECT r.id, r.name, r.description, r.website, r.street,
	c.id AS city_id, c.zip_code AS city_zip_code, c.name AS city_name,
	t.id AS type_id, t.label AS type_label, t.description AS type_description
FROM restaurants r
JOIN cities c ON c.id = r.city_id
JOIN restaurant_types t ON t.id = r.type_id`

// RestaurantMapper maps restaurant base rows. Evaluations are left to the
// AggregateLoader; a restaurant loaded here has an empty collection unless it
// was already assembled in this scope.
type RestaurantMapper struct{ s *Scope }

func (s *Scope) restaurant(row restaurantRow) *domain.Restaurant {
	city := s.city(cityRow{ID: row.CityID, ZipCode: row.CityZipCode, Name: row.CityName})
	typ := s.restaurantType(typeRow{ID: row.TypeID, Label: row.TypeLabel, Description: row.TypeDescription})
	return resolve(s, domain.EntityRestaurant, row.ID, func() *domain.Restaurant {
		return &domain.Restaurant{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Website:     row.Website,
			Address:     domain.Localisation{Street: row.Street, City: city},
			Type:        typ,
			Evaluations: []domain.Evaluation{},
		}
	})
}

func (m RestaurantMapper) FindByID(ctx context.Context, id int64) (*domain.Restaurant, error) {
	if r, ok := identitymap.Lookup[*domain.Restaurant](m.s.identity, domain.EntityRestaurant, id); ok {
		return r, nil
	}
	var row restaurantRow
	if err := m.s.tx.Get(ctx, &row, restaurantSelect+" WHERE r.id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityRestaurant, ID: id}
		}
		return nil, m.s.fail("find restaurant", err)
	}
	return m.s.restaurant(row), nil
}

func (m RestaurantMapper) FindAll(ctx context.Context) ([]*domain.Restaurant, error) {
	return m.list(ctx, "find restaurants", restaurantSelect+" ORDER BY r.name, r.id")
}

// FindByName matches a case-insensitive name fragment.
func (m RestaurantMapper) FindByName(ctx context.Context, fragment string) ([]*domain.Restaurant, error) {
	return m.list(ctx, "find restaurants by name",
		restaurantSelect+" WHERE UPPER(r.name) LIKE UPPER(?) ORDER BY r.name, r.id", "%"+fragment+"%")
}

// FindByCityName matches a case-insensitive city name fragment.
func (m RestaurantMapper) FindByCityName(ctx context.Context, fragment string) ([]*domain.Restaurant, error) {
	return m.list(ctx, "find restaurants by city name",
		restaurantSelect+" WHERE UPPER(c.name) LIKE UPPER(?) ORDER BY r.name, r.id", "%"+fragment+"%")
}

func (m RestaurantMapper) FindByType(ctx context.Context, typeID int64) ([]*domain.Restaurant, error) {
	return m.list(ctx, "find restaurants by type",
		restaurantSelect+" WHERE r.type_id = ? ORDER BY r.name, r.id", typeID)
}

// Create inserts r. An address city without an id is matched by zip code
// and name or created on the fly.
func (m RestaurantMapper) Create(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error) {
	restore, err := m.prepare(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx,
		"INSERT INTO restaurants (name, description, website, street, city_id, type_id) VALUES (?, ?, ?, ?, ?, ?)",
		r.Name, r.Description, r.Website, r.Address.Street, r.Address.City.ID, r.Type.ID)
	if err != nil {
		restore()
		return nil, m.s.fail("insert restaurant", err)
	}
	r.ID = id
	if r.Evaluations == nil {
		r.Evaluations = []domain.Evaluation{}
	}
	m.s.identity.Put(domain.EntityRestaurant, id, r)
	return r, nil
}

func (m RestaurantMapper) Update(ctx context.Context, r *domain.Restaurant) error {
	if r != nil {
		if err := requireID(domain.EntityRestaurant, r.ID); err != nil {
			return err
		}
	}
	restore, err := m.prepare(ctx, r)
	if err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx,
		"UPDATE restaurants SET name = ?, description = ?, website = ?, street = ?, city_id = ?, type_id = ? WHERE id = ?",
		r.Name, r.Description, r.Website, r.Address.Street, r.Address.City.ID, r.Type.ID, r.ID)
	if err != nil {
		restore()
		return m.s.fail("update restaurant", err)
	}
	if n == 0 {
		restore()
		return domain.ErrNotFound{Entity: domain.EntityRestaurant, ID: r.ID}
	}
	m.s.identity.Put(domain.EntityRestaurant, r.ID, r)
	return nil
}

func (m RestaurantMapper) Delete(ctx context.Context, r *domain.Restaurant) error {
	if r == nil {
		return domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "restaurant"}
	}
	return m.DeleteByID(ctx, r.ID)
}

// DeleteByID deletes the restaurant row only. Remaining evaluations make it
// an integrity violation; the edit-session cascade removes them first.
func (m RestaurantMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityRestaurant, id); err != nil {
		return err
	}
	dependents := []struct {
		entity domain.EntityType
		query  string
	}{
		{domain.EntityBasicEvaluation, "SELECT COUNT(*) FROM basic_evaluations WHERE restaurant_id = ?"},
		{domain.EntityCompleteEvaluation, "SELECT COUNT(*) FROM complete_evaluations WHERE restaurant_id = ?"},
	}
	for _, dep := range dependents {
		n, err := m.s.count(ctx, "count "+string(dep.entity)+" rows", dep.query, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrIntegrityViolation{Entity: domain.EntityRestaurant, ID: id, Dependent: dep.entity}
		}
	}
	return m.s.deleteRow(ctx, domain.EntityRestaurant, rowstore.TableRestaurants, id)
}

// prepare validates r and resolves its address city. The returned func puts
// the caller's city back when the restaurant write itself fails.
func (m RestaurantMapper) prepare(ctx context.Context, r *domain.Restaurant) (func(), error) {
	switch {
	case r == nil:
		return nil, domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "restaurant"}
	case strings.TrimSpace(r.Name) == "":
		return nil, domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "name"}
	case r.Type == nil || r.Type.ID == 0:
		return nil, domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "type"}
	case r.Address.City == nil:
		return nil, domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "address.city"}
	}
	if r.Address.City.ID != 0 {
		return func() {}, nil
	}
	candidate := r.Address.City
	city, err := m.s.Cities().FindOrCreate(ctx, candidate)
	if err != nil {
		return nil, err
	}
	r.Address.City = city
	return func() {
		r.Address.City = candidate
		if city == candidate {
			m.s.identity.Remove(domain.EntityCity, candidate.ID)
			candidate.ID = 0
		}
	}, nil
}

func (m RestaurantMapper) list(ctx context.Context, op, query string, args ...any) ([]*domain.Restaurant, error) {
	rows, err := selectRows[restaurantRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Restaurant, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.s.restaurant(row))
	}
	return out, nil
}
