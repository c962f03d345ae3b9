package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"voicecrm/api/internal/archive"
	"voicecrm/api/internal/config"
	"voicecrm/api/internal/export"
	"voicecrm/api/internal/extract"
	"voicecrm/api/internal/metrics"
	"voicecrm/api/internal/record"
	"voicecrm/api/internal/search"
	"voicecrm/api/internal/store"
)

type dataStore interface {
	Ping(context.Context) error
	ListInteractions(context.Context) ([]store.Interaction, error)
	GetInteraction(context.Context, int64) (store.Interaction, error)
	InsertInteraction(context.Context, store.Interaction) (int64, error)
	UpdateInteraction(context.Context, store.Interaction) error
	DeleteInteraction(context.Context, int64) error
}

type voiceExtractor interface {
	Transcribe(context.Context, string, io.Reader) (string, error)
	Extract(context.Context, string) (record.Output, error)
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexInteraction(search.InteractionRecord)
	DeleteInteraction(string)
	ReindexAll([]search.InteractionRecord)
}

type pdfExporter interface {
	ExportPDF(context.Context, export.Sheet) (*export.Result, error)
}

// Deps are the optional collaborators of the service. Nil members disable
// the feature that needs them.
type Deps struct {
	Extractor voiceExtractor
	Archive   archive.Store
	Search    searchIndex
	Exporter  pdfExporter
	Metrics   *metrics.Metrics
}

type Service struct {
	cfg       config.Config
	store     dataStore
	extractor voiceExtractor
	archive   archive.Store
	search    searchIndex
	exporter  pdfExporter
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		extractor: deps.Extractor,
		archive:   deps.Archive,
		search:    deps.Search,
		exporter:  deps.Exporter,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap pushes every stored interaction into the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search == nil || !s.cfg.ReindexOnStartup {
		return nil
	}
	items, err := s.store.ListInteractions(ctx)
	if err != nil {
		return fmt.Errorf("load interactions for reindex: %w", err)
	}
	records := make([]search.InteractionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.RecordFromInteraction(item))
	}
	s.search.ReindexAll(records)
	return nil
}

// ProcessVoice archives the upload, transcribes it and extracts the CRM
// fields. An archive failure is logged and does not fail the request.
func (s *Service) ProcessVoice(ctx context.Context, filename, contentType string, audio io.Reader) (VoiceResult, error) {
	if s.extractor == nil {
		return VoiceResult{}, extractionUnavailable()
	}
	started := s.now()

	data, err := io.ReadAll(audio)
	if err != nil {
		return VoiceResult{}, invalidUpload("INVALID_UPLOAD", "Could not read upload")
	}
	if len(data) == 0 {
		return VoiceResult{}, invalidUpload("EMPTY_UPLOAD", "Uploaded file is empty")
	}

	var result VoiceResult
	if s.archive != nil {
		key := archive.NewKey(started, filename)
		if err := s.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			log.Printf("app: archive voice note %s: %v", key, err)
		} else {
			result.AudioKey = key
		}
	}

	transcript, err := s.extractor.Transcribe(ctx, filename, bytes.NewReader(data))
	if err != nil {
		s.metrics.VoiceFailed("transcribe")
		return VoiceResult{}, voiceError("TRANSCRIPTION_FAILED", err)
	}
	output, err := s.extractor.Extract(ctx, transcript)
	if err != nil {
		s.metrics.VoiceFailed("extract")
		return VoiceResult{}, voiceError("EXTRACTION_FAILED", err)
	}
	if output.Interaction.CreatedAt == "" {
		output.Interaction.CreatedAt = started.UTC().Format(time.RFC3339)
	}

	s.metrics.VoiceProcessed(s.now().Sub(started))
	result.Transcript = transcript
	result.Data = output
	return result, nil
}

func voiceError(code string, err error) error {
	if errors.Is(err, extract.ErrNotConfigured) {
		return extractionUnavailable()
	}
	log.Printf("app: voice processing %s: %v", strings.ToLower(code), err)
	return upstreamFailure(code, err)
}

// ListHistory returns every interaction, newest first.
func (s *Service) ListHistory(ctx context.Context) ([]HistoryRow, error) {
	items, err := s.store.ListInteractions(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	rows := make([]HistoryRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, historyRow(item))
	}
	return rows, nil
}

func historyRow(item store.Interaction) HistoryRow {
	output := json.RawMessage(`{}`)
	if raw := strings.TrimSpace(item.RawJSON); raw != "" && json.Valid([]byte(raw)) {
		output = json.RawMessage(raw)
	}
	return HistoryRow{
		ID:           formatInteractionID(item.ID),
		Input:        item.Transcript,
		Output:       output,
		Status:       "REAL",
		CreatedAt:    item.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999"),
		CustomerName: item.CustomerName,
		Phone:        item.Phone,
		City:         item.City,
		Locality:     item.Locality,
	}
}

// CreateHistory stores a new interaction and returns its identity.
func (s *Service) CreateHistory(ctx context.Context, in WriteInput) (string, error) {
	rawJSON, err := in.rawJSON("")
	if err != nil {
		return "", err
	}
	item := store.Interaction{
		RawJSON:      rawJSON,
		CustomerName: in.customerName(),
		CreatedAt:    s.now().UTC(),
	}
	if in.Transcript != nil {
		item.Transcript = *in.Transcript
	}
	item.Phone, _ = in.customerField(record.FieldPhone)
	item.Address, _ = in.customerField(record.FieldAddress)
	item.City, _ = in.customerField(record.FieldCity)
	item.Locality, _ = in.customerField(record.FieldLocality)
	item.Summary, _ = in.summary()
	if in.AudioKey != "" {
		key := in.AudioKey
		item.AudioKey = &key
	}

	id, err := s.store.InsertInteraction(ctx, item)
	if err != nil {
		return "", err
	}
	item.ID = id
	s.metrics.Mutation("create")
	s.index(item)
	return formatInteractionID(id), nil
}

// UpdateHistory applies the payload to an existing interaction. Absent keys
// keep their stored values; a missing or empty name keeps the stored name.
func (s *Service) UpdateHistory(ctx context.Context, rawID string, in WriteInput) error {
	id, err := parseInteractionID(rawID)
	if err != nil {
		return err
	}
	item, err := s.store.GetInteraction(ctx, id)
	if err != nil {
		return err
	}

	if name := in.customerName(); name != nil {
		item.CustomerName = name
	}
	if value, ok := in.customerField(record.FieldPhone); ok {
		item.Phone = value
	}
	if value, ok := in.customerField(record.FieldAddress); ok {
		item.Address = value
	}
	if value, ok := in.customerField(record.FieldCity); ok {
		item.City = value
	}
	if value, ok := in.customerField(record.FieldLocality); ok {
		item.Locality = value
	}
	if value, ok := in.summary(); ok {
		item.Summary = value
	}
	if in.Transcript != nil {
		item.Transcript = *in.Transcript
	}
	if item.RawJSON, err = in.rawJSON(item.RawJSON); err != nil {
		return err
	}

	if err := s.store.UpdateInteraction(ctx, item); err != nil {
		return err
	}
	s.metrics.Mutation("update")
	s.index(item)
	return nil
}

func (s *Service) DeleteHistory(ctx context.Context, rawID string) error {
	id, err := parseInteractionID(rawID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInteraction(ctx, id); err != nil {
		return err
	}
	s.metrics.Mutation("delete")
	if s.search != nil {
		s.search.DeleteInteraction(formatInteractionID(id))
	}
	return nil
}

func (s *Service) SearchHistory(ctx context.Context, query string, limit int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.search.Search(ctx, search.Query{Text: query, Limit: limit})
}

// ExportPDF renders one interaction as a printable record sheet.
func (s *Service) ExportPDF(ctx context.Context, rawID string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, pdfUnavailable("PDF export is not configured")
	}
	id, err := parseInteractionID(rawID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.GetInteraction(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.exporter.ExportPDF(ctx, recordSheet(item))
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, pdfUnavailable("PDF export is unavailable on this server")
	}
	return result, err
}

func recordSheet(item store.Interaction) export.Sheet {
	rec := record.Decode(record.Entry{
		ID:           record.FlexID(formatInteractionID(item.ID)),
		Input:        item.Transcript,
		Output:       decodeOutput(item.RawJSON),
		CustomerName: item.CustomerName,
		Phone:        item.Phone,
		City:         item.City,
		Locality:     item.Locality,
	}, record.Live)

	labels := []struct{ field, label string }{
		{record.FieldFullName, "Name"},
		{record.FieldPhone, "Phone"},
		{record.FieldAddress, "Address"},
		{record.FieldCity, "City"},
		{record.FieldLocality, "Locality"},
	}
	fields := make([]export.Field, 0, len(labels))
	for _, l := range labels {
		value := rec.CustomerField(l.field)
		if l.field == record.FieldAddress && item.Address != nil && value == "" {
			value = *item.Address
		}
		if value == "" {
			value = "N/A"
		}
		fields = append(fields, export.Field{Label: l.label, Value: value})
	}

	summary := rec.Interaction.Summary
	if summary == "" && item.Summary != nil {
		summary = *item.Summary
	}
	return export.Sheet{
		ID:         rec.ID,
		Title:      rec.DisplayName(),
		Customer:   fields,
		Summary:    summary,
		Transcript: item.Transcript,
		CreatedAt:  item.CreatedAt,
	}
}

func decodeOutput(raw string) *record.Output {
	var out record.Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return &out
}

func (s *Service) index(item store.Interaction) {
	if s.search == nil {
		return
	}
	s.search.IndexInteraction(search.RecordFromInteraction(item))
}
