package identitymap

import (
	"testing"

	"guideresto/pkg/domain"
)

func TestPutGetRemove(t *testing.T) {
	m := New()
	city := &domain.City{ID: 3, Name: "Neuchâtel"}
	m.Put(domain.EntityCity, city.ID, city)

	got, ok := Lookup[*domain.City](m, domain.EntityCity, 3)
	if !ok || got != city {
		t.Fatalf("expected registered instance, got %v ok=%v", got, ok)
	}
	if _, ok := m.Get(domain.EntityRestaurant, 3); ok {
		t.Fatalf("same id under another type must not collide")
	}
	if !m.Remove(domain.EntityCity, 3) {
		t.Fatalf("expected remove to report existing entry")
	}
	if m.Remove(domain.EntityCity, 3) {
		t.Fatalf("second remove must report absence")
	}
	if _, ok := m.Get(domain.EntityCity, 3); ok {
		t.Fatalf("entry still present after remove")
	}
}

func TestPutIgnoresUnpersisted(t *testing.T) {
	m := New()
	m.Put(domain.EntityCity, 0, &domain.City{Name: "draft"})
	m.Put(domain.EntityCity, 4, nil)
	if m.Len() != 0 {
		t.Fatalf("expected empty map, got %d entries", m.Len())
	}
}

func TestLookupTypeMismatch(t *testing.T) {
	m := New()
	m.Put(domain.EntityCity, 1, &domain.RestaurantType{ID: 1})
	if _, ok := Lookup[*domain.City](m, domain.EntityCity, 1); ok {
		t.Fatalf("expected mismatched type to be reported absent")
	}
}

func TestClear(t *testing.T) {
	m := New()
	for i := int64(1); i <= 5; i++ {
		m.Put(domain.EntityGrade, i, &domain.Grade{ID: i})
	}
	if m.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", m.Len())
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty map after clear, got %d", m.Len())
	}
	m.Put(domain.EntityGrade, 1, &domain.Grade{ID: 1})
	if m.Len() != 1 {
		t.Fatalf("map must stay usable after clear")
	}
}

func TestKeysAreOrdered(t *testing.T) {
	m := New()
	m.Put(domain.EntityRestaurant, 2, &domain.Restaurant{ID: 2})
	m.Put(domain.EntityCity, 9, &domain.City{ID: 9})
	m.Put(domain.EntityCity, 1, &domain.City{ID: 1})
	keys := m.Keys()
	want := []Key{{domain.EntityCity, 1}, {domain.EntityCity, 9}, {domain.EntityRestaurant, 2}}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %v, got %v", i, want[i], keys[i])
		}
	}
}

func TestFindMatchesWithinType(t *testing.T) {
	m := New()
	m.Put(domain.EntityCity, 2, &domain.City{ID: 2, ZipCode: "2000"})
	first := &domain.Grade{ID: 5, Score: 3}
	m.Put(domain.EntityGrade, 7, &domain.Grade{ID: 7, Score: 3})
	m.Put(domain.EntityGrade, 5, first)

	got, ok := Find(m, domain.EntityGrade, func(g *domain.Grade) bool { return g.Score == 3 })
	if !ok || got != first {
		t.Fatalf("expected lowest matching id, got %+v ok=%v", got, ok)
	}
	if _, ok := Find(m, domain.EntityGrade, func(g *domain.Grade) bool { return g.Score == 1 }); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := Find(m, domain.EntityGrade, func(*domain.City) bool { return true }); ok {
		t.Fatalf("values of another type must not match")
	}
}
