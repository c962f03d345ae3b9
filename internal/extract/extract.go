// Package extract turns voice notes into CRM fields: speech-to-text through a
// Whisper-compatible transcription endpoint, then structured extraction
// through a chat-completion endpoint in JSON mode. Groq serves both.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"voicecrm/api/internal/record"
)

const systemPrompt = `You are a CRM data extraction assistant. Extract structured details from the provided customer interaction transcript.
If fields are missing, set them to null.
The output MUST be a valid JSON object with the following structure:
{
  "customer": {
    "full_name": string,
    "phone": string,
    "address": string,
    "city": string,
    "locality": string
  },
  "interaction": {
    "summary": string,
    "created_at": string (ISO 8601)
  }
}`

var extractedFields = []string{record.FieldFullName, record.FieldPhone, record.FieldAddress, record.FieldCity, record.FieldLocality}

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("extraction api key is not set")

type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	ExtractionModel    string
	Language           string
	HTTPClient         *http.Client
}

// Service handles transcription and extraction.
type Service struct {
	apiKey             string
	baseURL            string
	transcriptionModel string
	extractionModel    string
	language           string
	httpClient         *http.Client
	now                func() time.Time
}

func New(cfg Config) *Service {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Whisper can take a while for long audio
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	s := &Service{
		apiKey:             strings.TrimSpace(cfg.APIKey),
		baseURL:            baseURL,
		transcriptionModel: cfg.TranscriptionModel,
		extractionModel:    cfg.ExtractionModel,
		language:           cfg.Language,
		httpClient:         httpClient,
		now:                time.Now,
	}
	if s.transcriptionModel == "" {
		s.transcriptionModel = "whisper-large-v3"
	}
	if s.extractionModel == "" {
		s.extractionModel = "llama-3.3-70b-versatile"
	}
	return s
}

// Configured reports whether an API key is present.
func (s *Service) Configured() bool {
	return s != nil && s.apiKey != ""
}

// Transcribe sends the audio to the transcription endpoint and returns the text.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename == "" {
		filename = "audio.webm"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	size, err := io.Copy(part, audio)
	if err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	fields := map[string]string{
		"model":           s.transcriptionModel,
		"response_format": "verbose_json",
	}
	if s.language != "" {
		fields["language"] = s.language
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("write %s field: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	log.Printf("extract: transcribing %s (%d bytes, model %s)", filename, size, s.transcriptionModel)
	respBody, err := s.post(ctx, "/audio/transcriptions", writer.FormDataContentType(), body)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	var apiResp struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parse transcription: %w", err)
	}
	return strings.TrimSpace(apiResp.Text), nil
}

// Extract pulls the customer and interaction fields out of a transcript.
// Missing fields come back as null; a missing interaction.created_at is
// filled with the current UTC time.
func (s *Service) Extract(ctx context.Context, transcript string) (record.Output, error) {
	if !s.Configured() {
		return record.Output{}, ErrNotConfigured
	}

	reqBody, err := json.Marshal(map[string]any{
		"model": s.extractionModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": transcript},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return record.Output{}, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := s.post(ctx, "/chat/completions", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return record.Output{}, fmt.Errorf("extract: %w", err)
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return record.Output{}, fmt.Errorf("parse completion: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return record.Output{}, fmt.Errorf("no response from extraction model")
	}

	var out record.Output
	if err := json.Unmarshal([]byte(apiResp.Choices[0].Message.Content), &out); err != nil {
		return record.Output{}, fmt.Errorf("parse extracted json: %w", err)
	}
	if out.Customer == nil {
		out.Customer = map[string]*string{}
	}
	for _, field := range extractedFields {
		if _, ok := out.Customer[field]; !ok {
			out.Customer[field] = nil
		}
	}
	if strings.TrimSpace(out.Interaction.CreatedAt) == "" {
		out.Interaction.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (s *Service) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("api error (status %d)", resp.StatusCode)
	}
	return respBody, nil
}
