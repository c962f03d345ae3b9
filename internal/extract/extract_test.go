package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	svc := New(Config{APIKey: "test-key", BaseURL: server.URL + "/", Language: "en"})
	svc.now = func() time.Time { return time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC) }
	return svc
}

func TestTranscribeSendsMultipartAudio(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing bearer token")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		audio, _ := io.ReadAll(file)
		if header.Filename != "note.webm" || string(audio) != "OggS" {
			t.Fatalf("unexpected upload %q %q", header.Filename, audio)
		}
		if r.FormValue("model") != "whisper-large-v3" || r.FormValue("language") != "en" {
			t.Fatalf("unexpected form values model=%q language=%q", r.FormValue("model"), r.FormValue("language"))
		}
		_, _ = w.Write([]byte(`{"text":"  Met Ravi Teja in Jubilee Hills. ","duration":3.2}`))
	})

	text, err := svc.Transcribe(context.Background(), "note.webm", strings.NewReader("OggS"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "Met Ravi Teja in Jubilee Hills." {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestExtractFillsMissingFieldsAndTimestamp(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model          string            `json:"model"`
			ResponseFormat map[string]string `json:"response_format"`
			Messages       []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" || len(req.Messages) != 2 || req.Messages[1].Content != "Met Ravi" {
			t.Fatalf("unexpected request: %+v", req)
		}
		content := `{"customer":{"full_name":"Ravi Teja","phone":null},"interaction":{"summary":"API docs"}}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	})

	out, err := svc.Extract(context.Background(), "Met Ravi")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if name := out.Customer["full_name"]; name == nil || *name != "Ravi Teja" {
		t.Fatalf("unexpected full_name: %v", name)
	}
	for _, field := range []string{"phone", "address", "city", "locality"} {
		value, ok := out.Customer[field]
		if !ok || value != nil {
			t.Fatalf("expected %s to be present and null, got %v (present=%v)", field, value, ok)
		}
	}
	if out.Interaction.Summary != "API docs" {
		t.Fatalf("unexpected summary %q", out.Interaction.Summary)
	}
	if out.Interaction.CreatedAt != "2025-04-05T06:07:08Z" {
		t.Fatalf("created_at not filled: %q", out.Interaction.CreatedAt)
	}
}

func TestExtractSurfacesAPIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := svc.Extract(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestUnconfiguredServiceRefuses(t *testing.T) {
	svc := New(Config{})
	if _, err := svc.Transcribe(context.Background(), "a.webm", strings.NewReader("x")); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.Extract(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
