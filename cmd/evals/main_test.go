package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"voicecrm/api/internal/record"
	"voicecrm/api/internal/recordstore"
)

type fakeExtractor struct {
	extractFn func(context.Context, string) (record.Output, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, transcript string) (record.Output, error) {
	return f.extractFn(ctx, transcript)
}

func outputWithName(name string) record.Output {
	return record.Output{
		Customer:    map[string]*string{record.FieldFullName: &name},
		Interaction: record.Interaction{Summary: "call", CreatedAt: "2025-05-06T07:08:09Z"},
	}
}

func TestRunCasesStatuses(t *testing.T) {
	ex := &fakeExtractor{extractFn: func(_ context.Context, transcript string) (record.Output, error) {
		switch {
		case strings.HasPrefix(transcript, "named"):
			return outputWithName("Amit Verma"), nil
		case strings.HasPrefix(transcript, "broken"):
			return record.Output{}, errors.New("rate limited")
		default:
			return record.Output{Customer: map[string]*string{record.FieldFullName: nil}}, nil
		}
	}}

	results := runCases(context.Background(), ex, []string{"named case", "anonymous case", "broken case"}, time.Second)

	want := []string{"PASS", "FAIL", "ERROR"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, r := range results {
		if r.ID != i+1 || r.Status != want[i] {
			t.Errorf("result %d: id=%d status=%s, want id=%d status=%s", i, r.ID, r.Status, i+1, want[i])
		}
	}
	if results[2].Error != "rate limited" || results[2].Output != nil {
		t.Fatalf("error row should carry the error and no output: %+v", results[2])
	}
}

func TestWriteJSONIsReadableAsReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "eval_results.json")
	results := []result{
		{ID: 1, Input: "named case", Output: ptr(outputWithName("Amit Verma")), Status: "PASS"},
		{ID: 2, Input: "broken case", Status: "ERROR", Error: "rate limited"},
	}
	if err := writeJSON(path, results); err != nil {
		t.Fatalf("write json: %v", err)
	}

	records, err := recordstore.NewReferenceSource(path, nil).List(context.Background())
	if err != nil {
		t.Fatalf("load reference: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 reference records, got %d", len(records))
	}
	if records[0].DisplayName() != "Amit Verma" || records[0].Status != "PASS" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].DisplayName() != record.UnknownEntity || records[1].Error != "rate limited" {
		t.Fatalf("unexpected second record: %+v", records[1])
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if _, ok := decoded[1]["output"]; ok {
		t.Fatal("error rows should omit output")
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval_results.xlsx")
	results := []result{
		{ID: 1, Input: "named case", Output: ptr(outputWithName("Amit Verma")), Status: "PASS"},
		{ID: 2, Input: "broken case", Status: "ERROR", Error: "rate limited"},
	}
	if err := writeXLSX(path, results); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][4] != "full_name" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][2] != "PASS" || rows[1][4] != "Amit Verma" || rows[1][9] != "call" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][2] != "ERROR" || rows[2][3] != "rate limited" {
		t.Fatalf("unexpected second row %v", rows[2])
	}
}

func ptr[T any](v T) *T {
	return &v
}
