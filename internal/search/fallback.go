package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicecrm/api/internal/store"
)

type interactionSearcher interface {
	SearchInteractions(context.Context, string, int) ([]store.Interaction, error)
}

// StoreFallback searches the interactions table directly. It is used when
// Meilisearch is not configured or unhealthy.
type StoreFallback struct {
	store interactionSearcher
}

func NewStoreFallback(s interactionSearcher) *StoreFallback {
	return &StoreFallback{store: s}
}

func (f *StoreFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []Result{}, 0, nil
	}
	items, err := f.store.SearchInteractions(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, 0, err
	}
	results := make([]Result, 0, len(items))
	for _, item := range items {
		rec := RecordFromInteraction(item)
		results = append(results, Result{
			ID:           rec.ID,
			CustomerName: rec.CustomerName,
			City:         rec.City,
			Locality:     rec.Locality,
			CreatedAt:    rec.CreatedAt,
			Snippet:      firstNonBlank(rec.Summary, snippet(rec.Transcript, q.Text)),
		})
	}
	return results, len(results), nil
}

// RecordFromInteraction flattens a stored interaction into its index document.
func RecordFromInteraction(item store.Interaction) InteractionRecord {
	return InteractionRecord{
		ID:           fmt.Sprintf("db-%d", item.ID),
		Transcript:   item.Transcript,
		CustomerName: deref(item.CustomerName),
		Phone:        deref(item.Phone),
		City:         deref(item.City),
		Locality:     deref(item.Locality),
		Summary:      deref(item.Summary),
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// snippet returns up to 120 characters of text around the first match.
func snippet(text, query string) string {
	runes := []rune(text)
	if len(runes) <= 120 {
		return text
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(strings.TrimSpace(query)))
	if idx < 0 {
		return string(runes[:120])
	}
	start := len([]rune(text[:idx])) - 40
	if start < 0 {
		start = 0
	}
	end := start + 120
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
