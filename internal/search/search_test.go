package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voicecrm/api/internal/store"
)

type fakeInteractionSearcher struct {
	searchFn func(context.Context, string, int) ([]store.Interaction, error)
}

func (f fakeInteractionSearcher) SearchInteractions(ctx context.Context, query string, limit int) ([]store.Interaction, error) {
	return f.searchFn(ctx, query, limit)
}

func strPtr(v string) *string {
	return &v
}

func TestServiceFallsBackToStoreWithoutMeili(t *testing.T) {
	var gotLimit int
	fallback := NewStoreFallback(fakeInteractionSearcher{
		searchFn: func(_ context.Context, query string, limit int) ([]store.Interaction, error) {
			gotLimit = limit
			return []store.Interaction{{
				ID:           7,
				Transcript:   "visited the clinic",
				CustomerName: strPtr("Neha Gupta"),
				Locality:     strPtr("Indiranagar"),
				CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			}}, nil
		},
	})

	resp := NewService(nil, fallback).Search(context.Background(), Query{Text: "neha"})
	if gotLimit != 20 {
		t.Fatalf("expected default limit 20, got %d", gotLimit)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	hit := resp.Results[0]
	if hit.ID != "db-7" || hit.CustomerName != "Neha Gupta" || hit.Snippet != "visited the clinic" {
		t.Fatalf("unexpected hit: %+v", hit)
	}
	if hit.CreatedAt != "2025-01-02T03:04:05Z" {
		t.Fatalf("unexpected created_at: %q", hit.CreatedAt)
	}
}

func TestServiceReturnsEmptyResultsOnFallbackError(t *testing.T) {
	fallback := NewStoreFallback(fakeInteractionSearcher{
		searchFn: func(context.Context, string, int) ([]store.Interaction, error) {
			return nil, errors.New("db down")
		},
	})
	resp := NewService(nil, fallback).Search(context.Background(), Query{Text: "x", Limit: 5})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Query != "x" {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestStoreFallbackSkipsBlankQuery(t *testing.T) {
	fallback := NewStoreFallback(fakeInteractionSearcher{
		searchFn: func(context.Context, string, int) ([]store.Interaction, error) {
			t.Fatal("blank query must not hit the store")
			return nil, nil
		},
	})
	results, total, err := fallback.Search(context.Background(), Query{Text: "   "})
	if err != nil || total != 0 || len(results) != 0 {
		t.Fatalf("unexpected blank query result: %v %d %v", results, total, err)
	}
}

func TestSnippetCentresOnMatch(t *testing.T) {
	text := strings.Repeat("a", 200) + " warranty renewal " + strings.Repeat("b", 200)
	got := snippet(text, "WARRANTY")
	if !strings.Contains(got, "warranty") {
		t.Fatalf("snippet should contain the match, got %q", got)
	}
	if len([]rune(got)) != 120 {
		t.Fatalf("expected 120 runes, got %d", len([]rune(got)))
	}
}
