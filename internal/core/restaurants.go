package core

import (
	"context"

	"guideresto/internal/mapper"
	"guideresto/pkg/domain"
)

// Restaurant loads the full aggregate: type, city, evaluations and grades.
func (s *Service) Restaurant(ctx context.Context, id int64) (*domain.Restaurant, error) {
	var out *domain.Restaurant
	err := s.scoped(ctx, "get_restaurant", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Aggregates().Load(ctx, id)
		return id, err
	})
	return out, err
}

// Restaurants loads every aggregate ordered by name.
func (s *Service) Restaurants(ctx context.Context) ([]*domain.Restaurant, error) {
	var out []*domain.Restaurant
	err := s.scoped(ctx, "list_restaurants", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = sc.Aggregates().LoadAll(ctx)
		return 0, err
	})
	return out, err
}

// RestaurantsByName matches fragment case-insensitively. Results carry
// their type and city but no evaluations.
func (s *Service) RestaurantsByName(ctx context.Context, fragment string) ([]*domain.Restaurant, error) {
	return s.findRestaurants(ctx, "find_restaurants_by_name", func(ctx context.Context, m mapper.RestaurantMapper) ([]*domain.Restaurant, error) {
		return m.FindByName(ctx, fragment)
	})
}

func (s *Service) RestaurantsByCityName(ctx context.Context, fragment string) ([]*domain.Restaurant, error) {
	return s.findRestaurants(ctx, "find_restaurants_by_city", func(ctx context.Context, m mapper.RestaurantMapper) ([]*domain.Restaurant, error) {
		return m.FindByCityName(ctx, fragment)
	})
}

func (s *Service) RestaurantsByType(ctx context.Context, typeID int64) ([]*domain.Restaurant, error) {
	return s.findRestaurants(ctx, "find_restaurants_by_type", func(ctx context.Context, m mapper.RestaurantMapper) ([]*domain.Restaurant, error) {
		return m.FindByType(ctx, typeID)
	})
}

func (s *Service) findRestaurants(ctx context.Context, op string, find func(context.Context, mapper.RestaurantMapper) ([]*domain.Restaurant, error)) ([]*domain.Restaurant, error) {
	var out []*domain.Restaurant
	err := s.scoped(ctx, op, func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		out, err = find(ctx, sc.Restaurants())
		return 0, err
	})
	return out, err
}

// CreateRestaurant inserts r, creating its address city when the city has
// no id yet.
func (s *Service) CreateRestaurant(ctx context.Context, r *domain.Restaurant) (*domain.Restaurant, error) {
	var out *domain.Restaurant
	err := s.scoped(ctx, "create_restaurant", func(ctx context.Context, sc *mapper.Scope) (int64, error) {
		var err error
		if out, err = sc.Restaurants().Create(ctx, r); err != nil {
			return 0, err
		}
		return out.ID, nil
	})
	return out, err
}

// BeginEditRestaurant locks restaurant id and returns the open session. The
// caller must Commit or Rollback it.
func (s *Service) BeginEditRestaurant(ctx context.Context, id int64) (*EditSession, error) {
	var session *EditSession
	err := s.run(ctx, "begin_edit_restaurant", func(ctx context.Context) (int64, error) {
		var err error
		session, err = s.edits.Begin(ctx, id, nil)
		return id, err
	})
	return session, err
}

// UpdateRestaurant applies mutate to the locked aggregate and commits. An
// error from mutate rolls the session back and is returned as is.
func (s *Service) UpdateRestaurant(ctx context.Context, id int64, mutate func(*domain.Restaurant) error) (*domain.Restaurant, error) {
	var out *domain.Restaurant
	err := s.run(ctx, "update_restaurant", func(ctx context.Context) (int64, error) {
		session, err := s.edits.Begin(ctx, id, nil)
		if err != nil {
			return id, err
		}
		defer func() { _ = session.Rollback() }()
		if err := mutate(session.Restaurant()); err != nil {
			return id, err
		}
		if err := session.Commit(ctx); err != nil {
			return id, err
		}
		out = session.Restaurant()
		return id, nil
	})
	return out, err
}

// DeleteRestaurant removes r with its evaluations and grades. r is detached
// from the caller: its evaluation collection is emptied on success.
func (s *Service) DeleteRestaurant(ctx context.Context, r *domain.Restaurant) (DeleteReport, error) {
	var report DeleteReport
	err := s.run(ctx, "delete_restaurant", func(ctx context.Context) (int64, error) {
		if r == nil {
			return 0, domain.ErrValidation{Entity: domain.EntityRestaurant, Field: "restaurant"}
		}
		var err error
		if report, err = s.edits.DeleteRestaurant(ctx, r.ID, nil); err != nil {
			return r.ID, err
		}
		r.Evaluations = []domain.Evaluation{}
		return r.ID, nil
	})
	return report, err
}
