package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	City         string `json:"city,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Snippet      string `json:"snippet"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a search over stored interactions.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// InteractionRecord is the data we index for an interaction.
type InteractionRecord struct {
	ID           string `json:"id"`
	Transcript   string `json:"transcript"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	Locality     string `json:"locality"`
	Summary      string `json:"summary"`
	CreatedAt    string `json:"created_at"`
}
