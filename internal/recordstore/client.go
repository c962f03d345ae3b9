// Package recordstore is the client side of the live record store and the
// loader for the reference (evaluation) dataset.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicecrm/api/internal/record"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// Client talks to the voice CRM API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL. A nil httpClient gets a
// default one; uploads can take a while, so the timeout is generous.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// List fetches the live collection, newest first as the API orders it.
func (c *Client) List(ctx context.Context) ([]*record.Record, error) {
	var entries []record.Entry
	if err := c.do(ctx, "list history", http.MethodGet, "/history", nil, &entries); err != nil {
		return nil, err
	}
	return record.DecodeAll(entries, record.Live), nil
}

// Create persists a new record and returns its server identity.
func (c *Client) Create(ctx context.Context, payload record.Payload) (string, error) {
	var response struct {
		ID record.FlexID `json:"id"`
	}
	if err := c.do(ctx, "create history", http.MethodPost, "/history", payload, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("create history: response carried no id")
	}
	return string(response.ID), nil
}

// Update overwrites the record with the given identity.
func (c *Client) Update(ctx context.Context, id string, payload record.Payload) error {
	return c.do(ctx, "update history", http.MethodPut, "/history/"+url.PathEscape(id), payload, nil)
}

// Delete removes the record with the given identity.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete history", http.MethodDelete, "/history/"+url.PathEscape(id), nil, nil)
}

// ProcessVoice uploads an audio file for transcription and extraction and
// returns the result as an unsaved draft.
func (c *Client) ProcessVoice(ctx context.Context, filename string, audio io.Reader) (*record.Record, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("process voice: create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("process voice: copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("process voice: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process-voice", &body)
	if err != nil {
		return nil, fmt.Errorf("process voice: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var response struct {
		Transcript string        `json:"transcript"`
		Data       record.Output `json:"data"`
	}
	if err := c.send(req, "process voice", &response); err != nil {
		return nil, err
	}
	return record.Draft(response.Transcript, response.Data), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, target)
}

func (c *Client) send(req *http.Request, op string, target any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Op: op, Status: resp.StatusCode}
		var apiErr struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil {
			statusErr.Code = apiErr.Code
			statusErr.Message = apiErr.Error
		}
		return statusErr
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
