package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"guideresto/internal/infra/persistence/sqlite"
	"guideresto/internal/infra/rowstore"
	"guideresto/pkg/domain"
)

var visitDay = time.Date(2026, time.May, 2, 19, 30, 0, 0, time.UTC)

func openGateway(t *testing.T) *rowstore.SQLGateway {
	t.Helper()
	gw, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "guideresto.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return NewService(openGateway(t), opts...)
}

type directory struct {
	city       *domain.City
	pizzeria   *domain.RestaurantType
	criteria   []*domain.EvaluationCriteria
	restaurant *domain.Restaurant
}

// seedPizzeria creates "Pizza Bella" in Neuchâtel with no evaluations and
// two grading criteria.
func seedPizzeria(t *testing.T, svc *Service) directory {
	t.Helper()
	ctx := context.Background()
	var d directory
	var err error
	if d.city, err = svc.CreateCity(ctx, &domain.City{ZipCode: "2000", Name: "Neuchâtel"}); err != nil {
		t.Fatalf("create city: %v", err)
	}
	if d.pizzeria, err = svc.CreateRestaurantType(ctx, &domain.RestaurantType{Label: "Pizzeria"}); err != nil {
		t.Fatalf("create type: %v", err)
	}
	for _, name := range []string{"Service", "Cuisine"} {
		c, err := svc.CreateCriteria(ctx, &domain.EvaluationCriteria{Name: name})
		if err != nil {
			t.Fatalf("create criteria %s: %v", name, err)
		}
		d.criteria = append(d.criteria, c)
	}
	d.restaurant, err = svc.CreateRestaurant(ctx, &domain.Restaurant{
		Name:    "Pizza Bella",
		Address: domain.Localisation{Street: "Rue A", City: d.city},
		Type:    d.pizzeria,
	})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return d
}

// rate adds one like and one complete evaluation by bob scored 5 and 4.
func rate(t *testing.T, svc *Service, d directory) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateBasicEvaluation(ctx, &domain.BasicEvaluation{Like: true, IPAddress: "192.0.2.7", Restaurant: d.restaurant}); err != nil {
		t.Fatalf("create basic evaluation: %v", err)
	}
	_, err := svc.CreateCompleteEvaluation(ctx, &domain.CompleteEvaluation{
		VisitDate:  visitDay,
		Comment:    "Great",
		Username:   "bob",
		Restaurant: d.restaurant,
		Grades: []*domain.Grade{
			{Score: 5, Criteria: d.criteria[0]},
			{Score: 4, Criteria: d.criteria[1]},
		},
	})
	if err != nil {
		t.Fatalf("create complete evaluation: %v", err)
	}
}

func count(t *testing.T, gw *rowstore.SQLGateway, table string) int {
	t.Helper()
	var n int
	if err := gw.DB().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
