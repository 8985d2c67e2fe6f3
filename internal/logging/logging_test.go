package logging

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNoopLogger(t *testing.T) {
	logger := Noop()
	logger.Debug("debug", "k", "v")
	logger.Info("info", "k", "v")
	logger.Warn("warn", "k", "v")
	logger.Error("error", "k", "v")
	if OrNoop(nil) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogrusAdapterLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := NewLogrus(base).With("component", "mapper")

	logger.Debug("lookup", "entity", "city", "id", int64(4))
	logger.Error("store failure", "error", errors.New("disk full"))

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.DebugLevel || entries[0].Data["entity"] != "city" || entries[0].Data["id"] != int64(4) {
		t.Fatalf("unexpected debug entry %+v", entries[0])
	}
	last := hook.LastEntry()
	if last.Level != logrus.ErrorLevel || last.Message != "store failure" {
		t.Fatalf("unexpected error entry %+v", last)
	}
	if last.Data["error"] != "disk full" || last.Data["component"] != "mapper" {
		t.Fatalf("unexpected fields %+v", last.Data)
	}
}

func TestFieldsOddAndNonStringKeys(t *testing.T) {
	fields := Fields([]any{42, "answer", "dangling"})
	if fields["42"] != "answer" {
		t.Fatalf("expected stringified key, got %+v", fields)
	}
	if fields["!BADKEY"] != "dangling" {
		t.Fatalf("expected dangling key marker, got %+v", fields)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	if ParseLevel("nonsense") != logrus.InfoLevel {
		t.Fatalf("expected info fallback")
	}
}
