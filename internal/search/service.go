package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// database.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to the database.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to database: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: database search error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexInteraction indexes an interaction (fire-and-forget to Meilisearch).
func (s *Service) IndexInteraction(rec InteractionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexInteraction(rec); err != nil {
			log.Printf("search: index interaction %s: %v", rec.ID, err)
		}
	}()
}

// DeleteInteraction removes an interaction from the search index (fire-and-forget).
func (s *Service) DeleteInteraction(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteInteraction(id); err != nil {
			log.Printf("search: delete interaction %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes every interaction to Meilisearch. Called at startup when
// Meilisearch is reachable.
func (s *Service) ReindexAll(records []InteractionRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	if err := s.meili.IndexInteractions(records); err != nil {
		log.Printf("search: reindex interactions: %v", err)
	}
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
