package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"voicecrm/api/internal/record"
)

// ReferenceSource loads the read-only evaluation dataset from a local file
// or an http(s) URL. A missing dataset is an empty one.
type ReferenceSource struct {
	location   string
	httpClient *http.Client
}

func NewReferenceSource(location string, httpClient *http.Client) *ReferenceSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ReferenceSource{location: strings.TrimSpace(location), httpClient: httpClient}
}

// List returns the reference records in file order.
func (r *ReferenceSource) List(ctx context.Context) ([]*record.Record, error) {
	if r == nil || r.location == "" {
		return []*record.Record{}, nil
	}
	if strings.HasPrefix(r.location, "http://") || strings.HasPrefix(r.location, "https://") {
		return r.fetch(ctx)
	}

	data, err := os.ReadFile(r.location)
	if errors.Is(err, fs.ErrNotExist) {
		return []*record.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reference dataset: %w", err)
	}
	return decodeReference(data)
}

func (r *ReferenceSource) fetch(ctx context.Context) ([]*record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch reference dataset: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []*record.Record{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: "fetch reference dataset", Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reference dataset: %w", err)
	}
	return decodeReference(data)
}

func decodeReference(data []byte) ([]*record.Record, error) {
	var entries []record.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode reference dataset: %w", err)
	}
	return record.DecodeAll(entries, record.Reference), nil
}
