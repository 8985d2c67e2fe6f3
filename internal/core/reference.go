package core

import (
	"context"

	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// City returns the city with the given id.
func (s *Service) City(ctx context.Context, id int64) (*domain.City, error) {
	var out *domain.City
	err := s.scoped(ctx, "get_city", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Cities().FindByID(ctx, id)
		return id, err
	})
	return out, err
}

// Cities lists every city ordered by name.
func (s *Service) Cities(ctx context.Context) ([]*domain.City, error) {
	var out []*domain.City
	err := s.scoped(ctx, "list_cities", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Cities().FindAll(ctx)
		return 0, err
	})
	return out, err
}

// CitiesByName matches fragment case-insensitively against city names.
func (s *Service) CitiesByName(ctx context.Context, fragment string) ([]*domain.City, error) {
	var out []*domain.City
	err := s.scoped(ctx, "find_cities_by_name", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Cities().FindByName(ctx, fragment)
		return 0, err
	})
	return out, err
}

func (s *Service) CreateCity(ctx context.Context, c *domain.City) (*domain.City, error) {
	var out *domain.City
	err := s.scoped(ctx, "create_city", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		if out, err = sc.Cities().Create(ctx, c); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

func (s *Service) UpdateCity(ctx context.Context, c *domain.City) error {
	return s.scoped(ctx, "update_city", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if c == nil {
			return 0, domain.ErrValidation{Entity: domain.EntityCity, Field: "city"}
		}
		return c.ID, sc.Cities().Update(ctx, c)
	})
}

// DeleteCity fails with ErrIntegrityViolation while a restaurant uses the city.
func (s *Service) DeleteCity(ctx context.Context, id int64) error {
	return s.scoped(ctx, "delete_city", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.Cities().DeleteByID(ctx, id)
	})
}

func (s *Service) RestaurantType(ctx context.Context, id int64) (*domain.RestaurantType, error) {
	var out *domain.RestaurantType
	err := s.scoped(ctx, "get_restaurant_type", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Types().FindByID(ctx, id)
		return id, err
	})
	return out, err
}

func (s *Service) RestaurantTypes(ctx context.Context) ([]*domain.RestaurantType, error) {
	var out []*domain.RestaurantType
	err := s.scoped(ctx, "list_restaurant_types", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Types().FindAll(ctx)
		return 0, err
	})
	return out, err
}

// RestaurantTypeByLabel compares labels ignoring case.
func (s *Service) RestaurantTypeByLabel(ctx context.Context, label string) (*domain.RestaurantType, error) {
	var out *domain.RestaurantType
	err := s.scoped(ctx, "find_restaurant_type_by_label", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Types().FindByLabel(ctx, label)
		return 0, err
	})
	return out, err
}

func (s *Service) CreateRestaurantType(ctx context.Context, t *domain.RestaurantType) (*domain.RestaurantType, error) {
	var out *domain.RestaurantType
	err := s.scoped(ctx, "create_restaurant_type", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		if out, err = sc.Types().Create(ctx, t); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

func (s *Service) UpdateRestaurantType(ctx context.Context, t *domain.RestaurantType) error {
	return s.scoped(ctx, "update_restaurant_type", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if t == nil {
			return 0, domain.ErrValidation{Entity: domain.EntityRestaurantType, Field: "restaurant_type"}
		}
		return t.ID, sc.Types().Update(ctx, t)
	})
}

func (s *Service) DeleteRestaurantType(ctx context.Context, id int64) error {
	return s.scoped(ctx, "delete_restaurant_type", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.Types().DeleteByID(ctx, id)
	})
}

func (s *Service) Criteria(ctx context.Context, id int64) (*domain.EvaluationCriteria, error) {
	var out *domain.EvaluationCriteria
	err := s.scoped(ctx, "get_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Criteria().FindByID(ctx, id)
		return id, err
	})
	return out, err
}

func (s *Service) AllCriteria(ctx context.Context) ([]*domain.EvaluationCriteria, error) {
	var out []*domain.EvaluationCriteria
	err := s.scoped(ctx, "list_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Criteria().FindAll(ctx)
		return 0, err
	})
	return out, err
}

func (s *Service) CriteriaByName(ctx context.Context, name string) (*domain.EvaluationCriteria, error) {
	var out *domain.EvaluationCriteria
	err := s.scoped(ctx, "find_criteria_by_name", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Criteria().FindByName(ctx, name)
		return 0, err
	})
	return out, err
}

func (s *Service) CreateCriteria(ctx context.Context, c *domain.EvaluationCriteria) (*domain.EvaluationCriteria, error) {
	var out *domain.EvaluationCriteria
	err := s.scoped(ctx, "create_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		if out, err = sc.Criteria().Create(ctx, c); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

func (s *Service) UpdateCriteria(ctx context.Context, c *domain.EvaluationCriteria) error {
	return s.scoped(ctx, "update_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		if c == nil {
			return 0, domain.ErrValidation{Entity: domain.EntityCriteria, Field: "criteria"}
		}
		return c.ID, sc.Criteria().Update(ctx, c)
	})
}

// DeleteCriteria fails with ErrIntegrityViolation while grades reference it.
func (s *Service) DeleteCriteria(ctx context.Context, id int64) error {
	return s.scoped(ctx, "delete_criteria", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		return id, sc.Criteria().DeleteByID(ctx, id)
	})
}
