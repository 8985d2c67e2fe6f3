package mapper

import (
	"context"
	"strings"

	"guideresto/internal/identitymap"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

const citySelect = "SELECT id, zip_code, name FROM cities"

// CityMapper maps the cities table.
type CityMapper struct{ s *Scope }

func (s *Scope) city(row cityRow) *domain.City {
	return resolve(s, domain.EntityCity, row.ID, func() *domain.City {
		return &domain.City{ID: row.ID, ZipCode: row.ZipCode, Name: row.Name}
	})
}

func (m CityMapper) FindByID(ctx context.Context, id int64) (*domain.City, error) {
	if c, ok := identitymap.Lookup[*domain.City](m.s.identity, domain.EntityCity, id); ok {
		return c, nil
	}
	var row cityRow
	if err := m.s.tx.Get(ctx, &row, citySelect+" WHERE id = ?", id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound{Entity: domain.EntityCity, ID: id}
		}
		return nil, m.s.fail("find city", err)
	}
	return m.s.city(row), nil
}

func (m CityMapper) FindAll(ctx context.Context) ([]*domain.City, error) {
	return m.list(ctx, "find cities", citySelect+" ORDER BY name, id")
}

// FindByZipCode returns the cities sharing zip.
func (m CityMapper) FindByZipCode(ctx context.Context, zip string) ([]*domain.City, error) {
	return m.list(ctx, "find cities by zip code", citySelect+" WHERE zip_code = ? ORDER BY name, id", strings.TrimSpace(zip))
}

// FindByName matches a case-insensitive name fragment.
func (m CityMapper) FindByName(ctx context.Context, fragment string) ([]*domain.City, error) {
	return m.list(ctx, "find cities by name", citySelect+" WHERE LOWER(name) LIKE LOWER(?) ORDER BY name, id", "%"+fragment+"%")
}

// FindOrCreate returns the city with the same zip code and a name equal
// ignoring case, or inserts candidate when there is none.
func (m CityMapper) FindOrCreate(ctx context.Context, candidate *domain.City) (*domain.City, error) {
	if err := validateCity(candidate); err != nil {
		return nil, err
	}
	rows, err := selectRows[cityRow](ctx, m.s, "find city by zip and name",
		citySelect+" WHERE zip_code = ? AND LOWER(name) = LOWER(?) ORDER BY id", candidate.ZipCode, candidate.Name)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return m.s.city(rows[0]), nil
	}
	return m.Create(ctx, candidate)
}

func (m CityMapper) Create(ctx context.Context, c *domain.City) (*domain.City, error) {
	if err := validateCity(c); err != nil {
		return nil, err
	}
	id, err := m.s.tx.Insert(ctx, "INSERT INTO cities (zip_code, name) VALUES (?, ?)", c.ZipCode, c.Name)
	if err != nil {
		return nil, m.s.fail("insert city", err)
	}
	c.ID = id
	m.s.identity.Put(domain.EntityCity, id, c)
	return c, nil
}

func (m CityMapper) Update(ctx context.Context, c *domain.City) error {
	if err := validateCity(c); err != nil {
		return err
	}
	if err := requireID(domain.EntityCity, c.ID); err != nil {
		return err
	}
	n, err := m.s.tx.Exec(ctx, "UPDATE cities SET zip_code = ?, name = ? WHERE id = ?", c.ZipCode, c.Name, c.ID)
	if err != nil {
		return m.s.fail("update city", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityCity, ID: c.ID}
	}
	m.s.identity.Put(domain.EntityCity, c.ID, c)
	return nil
}

func (m CityMapper) Delete(ctx context.Context, c *domain.City) error {
	if c == nil {
		return domain.ErrValidation{Entity: domain.EntityCity, Field: "city"}
	}
	return m.DeleteByID(ctx, c.ID)
}

// DeleteByID refuses to delete a city still used by a restaurant address.
func (m CityMapper) DeleteByID(ctx context.Context, id int64) error {
	if err := requireID(domain.EntityCity, id); err != nil {
		return err
	}
	n, err := m.s.count(ctx, "count restaurants by city", "SELECT COUNT(*) FROM restaurants WHERE city_id = ?", id)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrIntegrityViolation{Entity: domain.EntityCity, ID: id, Dependent: domain.EntityRestaurant}
	}
	return m.s.deleteRow(ctx, domain.EntityCity, rowstore.TableCities, id)
}

func (m CityMapper) list(ctx context.Context, op, query string, args ...any) ([]*domain.City, error) {
	rows, err := selectRows[cityRow](ctx, m.s, op, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.City, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.s.city(row))
	}
	return out, nil
}

func validateCity(c *domain.City) error {
	switch {
	case c == nil:
		return domain.ErrValidation{Entity: domain.EntityCity, Field: "city"}
	case strings.TrimSpace(c.ZipCode) == "":
		return domain.ErrValidation{Entity: domain.EntityCity, Field: "zip_code"}
	case strings.TrimSpace(c.Name) == "":
		return domain.ErrValidation{Entity: domain.EntityCity, Field: "name"}
	}
	return nil
}
