package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, dialect, err := Open(ctx, filepath.Join(t.TempDir(), "voicecrm.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewSQLStore(db, dialect)
}

func strPtr(v string) *string {
	return &v
}

func TestSQLStoreInsertAndListNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	firstID, err := s.InsertInteraction(ctx, Interaction{
		Transcript:   "first visit",
		CustomerName: strPtr("Asha Rao"),
		RawJSON:      `{"customer":{"full_name":"Asha Rao"}}`,
		CreatedAt:    base,
	})
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	secondID, err := s.InsertInteraction(ctx, Interaction{
		Transcript: "second visit",
		City:       strPtr("Pune"),
		CreatedAt:  base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if firstID == secondID {
		t.Fatalf("expected distinct ids, got %d twice", firstID)
	}

	items, err := s.ListInteractions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(items))
	}
	if items[0].ID != secondID || items[1].ID != firstID {
		t.Fatalf("expected newest first, got %d then %d", items[0].ID, items[1].ID)
	}
	if items[1].CustomerName == nil || *items[1].CustomerName != "Asha Rao" {
		t.Fatalf("customer name not persisted: %+v", items[1])
	}
	if items[0].CustomerName != nil {
		t.Fatalf("expected NULL customer name, got %q", *items[0].CustomerName)
	}
	if items[0].RawJSON != "{}" {
		t.Fatalf("expected default raw json, got %q", items[0].RawJSON)
	}
	if !items[1].CreatedAt.Equal(base) {
		t.Fatalf("created_at round trip: got %s want %s", items[1].CreatedAt, base)
	}
}

func TestSQLStoreUpdateAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.InsertInteraction(ctx, Interaction{Transcript: "draft", RawJSON: "{}"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	item, err := s.GetInteraction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	item.Summary = strPtr("follow up next week")
	item.Phone = strPtr("98450 00000")
	if err := s.UpdateInteraction(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := s.GetInteraction(ctx, id)
	if err != nil {
		t.Fatalf("get updated: %v", err)
	}
	if updated.Summary == nil || *updated.Summary != "follow up next week" {
		t.Fatalf("summary not updated: %+v", updated)
	}

	if err := s.DeleteInteraction(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetInteraction(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	if err := s.DeleteInteraction(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows deleting twice, got %v", err)
	}
	if err := s.UpdateInteraction(ctx, Interaction{ID: id, RawJSON: "{}"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows updating missing row, got %v", err)
	}
}

func TestSQLStoreSearchIsCaseInsensitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertInteraction(ctx, Interaction{Transcript: "met the owner", CustomerName: strPtr("Neha Gupta"), Locality: strPtr("Koramangala")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.InsertInteraction(ctx, Interaction{Transcript: "cold call", CustomerName: strPtr("Ravi")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	items, err := s.SearchInteractions(ctx, "KORAMANGALA", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].CustomerName == nil || *items[0].CustomerName != "Neha Gupta" {
		t.Fatalf("unexpected search results: %+v", items)
	}

	items, err = s.SearchInteractions(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("search wildcard: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("literal %% must not match everything, got %d", len(items))
	}
}
