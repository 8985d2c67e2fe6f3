package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"guideresto/internal/blob/core"
)

func TestPutGetListDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := map[string]string{"restaurant": "7"}
	info, err := s.Put(ctx, "restaurants/7/1.json", strings.NewReader(`{"id":7}`), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["restaurant"] = "mutated"
	if info.Size != 8 || info.Checksum == "" || info.Metadata["restaurant"] != "7" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "restaurants/7/1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "restaurants/8/1.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, rc, err := s.Get(ctx, "restaurants/7/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"id":7}` || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	listed, err := s.List(ctx, "restaurants/7/")
	if err != nil || len(listed) != 1 || listed[0].Key != "restaurants/7/1.json" {
		t.Fatalf("unexpected listing %v %v", listed, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key > all[1].Key {
		t.Fatalf("expected sorted listing of two blobs, got %v", all)
	}

	if ok, err := s.Delete(ctx, "restaurants/7/1.json"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "restaurants/7/1.json"); ok {
		t.Fatalf("second delete must report absence")
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

func TestPutRejectsEmptyKey(t *testing.T) {
	if _, err := New().Put(context.Background(), " ", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
