package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"guideresto/internal/blob"
	"guideresto/pkg/domain"
)

func TestExportRestaurantWritesDocument(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return at })))
	d := seedPizzeria(t, svc)
	rate(t, svc, d)
	store := blob.NewMemory()

	info, err := svc.ExportRestaurant(ctx, d.restaurant.ID, store)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != ExportKey(d.restaurant.ID, at) || info.ContentType != ExportContentType {
		t.Fatalf("unexpected blob info %+v", info)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc RestaurantDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Name != "Pizza Bella" || doc.City.Name != "Neuchâtel" || doc.Type.Label != "Pizzeria" {
		t.Fatalf("unexpected document header %+v", doc)
	}
	if doc.Likes != 1 || doc.Dislikes != 0 || len(doc.Evaluations) != 2 {
		t.Fatalf("unexpected evaluation summary %+v", doc)
	}
	complete := doc.Evaluations[1]
	if complete.Kind != "complete" || complete.TotalScore != 9 || len(complete.Grades) != 2 || complete.Grades[0].Criteria != "Service" {
		t.Fatalf("unexpected complete evaluation %+v", complete)
	}
	if basic := doc.Evaluations[0]; basic.Kind != "basic" || basic.Like == nil || !*basic.Like {
		t.Fatalf("unexpected basic evaluation %+v", basic)
	}

	if _, err := svc.ExportRestaurant(ctx, d.restaurant.ID, store); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected second export at the same instant to collide, got %v", err)
	}
}

func TestExportRestaurantErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if _, err := svc.ExportRestaurant(ctx, 1, blob.NewMemory()); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ExportRestaurant(ctx, 1, nil); err == nil {
		t.Fatalf("expected error without a store")
	}
}

func TestDocumentOfBareRestaurant(t *testing.T) {
	doc := NewRestaurantDocument(&domain.Restaurant{ID: 3, Name: "Nowhere"}, time.Unix(0, 0))
	if doc.Evaluations == nil || len(doc.Evaluations) != 0 || doc.City.ID != 0 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if ExportKey(3, time.Unix(0, 42)) != "restaurants/3/42.json" {
		t.Fatalf("unexpected key %s", ExportKey(3, time.Unix(0, 42)))
	}
}
