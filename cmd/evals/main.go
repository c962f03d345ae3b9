// voicecrm-evals runs the extraction model over a fixed set of spoken notes
// and writes the results as the reference dataset the console shows next to
// live history, plus a spreadsheet copy for review.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/xuri/excelize/v2"

	"voicecrm/api/internal/config"
	"voicecrm/api/internal/extract"
	"voicecrm/api/internal/record"
)

const sheetName = "Results"

type extractor interface {
	Extract(context.Context, string) (record.Output, error)
}

// result is one row of eval_results.json.
type result struct {
	ID     int            `json:"id"`
	Input  string         `json:"input"`
	Output *record.Output `json:"output,omitempty"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg := config.Load()

	var jsonPath, xlsxPath string
	var timeout time.Duration
	flagSet := pflag.NewFlagSet("voicecrm-evals", pflag.ContinueOnError)
	flagSet.StringVar(&jsonPath, "out", "eval_results.json", "where to write the JSON results")
	flagSet.StringVar(&xlsxPath, "xlsx", "eval_results.xlsx", "where to write the spreadsheet copy (empty to skip)")
	flagSet.DurationVar(&timeout, "timeout", time.Minute, "time limit per case")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	service := extract.New(extract.Config{
		APIKey:          cfg.GroqAPIKey,
		BaseURL:         cfg.GroqBaseURL,
		ExtractionModel: cfg.ExtractionModel,
	})
	if !service.Configured() {
		return extract.ErrNotConfigured
	}

	results := runCases(context.Background(), service, testCases, timeout)
	if err := writeJSON(jsonPath, results); err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := writeXLSX(xlsxPath, results); err != nil {
			return err
		}
	}

	passed := 0
	for _, r := range results {
		if r.Status == "PASS" {
			passed++
		}
	}
	log.Printf("evals: %d/%d passed, results in %s", passed, len(results), jsonPath)
	return nil
}

// runCases extracts every case in order. A case passes when a customer name
// was found; an extraction error marks it ERROR and the run continues.
func runCases(ctx context.Context, ex extractor, cases []string, timeout time.Duration) []result {
	results := make([]result, 0, len(cases))
	for i, text := range cases {
		log.Printf("evals: running case %d/%d", i+1, len(cases))
		caseCtx, cancel := context.WithTimeout(ctx, timeout)
		output, err := ex.Extract(caseCtx, text)
		cancel()

		row := result{ID: i + 1, Input: text}
		if err != nil {
			row.Status = "ERROR"
			row.Error = err.Error()
			results = append(results, row)
			continue
		}
		row.Output = &output
		row.Status = "FAIL"
		if name := output.Customer[record.FieldFullName]; name != nil && strings.TrimSpace(*name) != "" {
			row.Status = "PASS"
		}
		results = append(results, row)
	}
	return results
}

func writeJSON(path string, results []result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

var sheetHeader = []any{"id", "input", "status", "error", "full_name", "phone", "address", "city", "locality", "summary", "created_at"}

func writeXLSX(path string, results []result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &sheetHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.ID, r.Input, r.Status, r.Error}
		for _, field := range []string{record.FieldFullName, record.FieldPhone, record.FieldAddress, record.FieldCity, record.FieldLocality} {
			row = append(row, customerValue(r.Output, field))
		}
		if r.Output != nil {
			row = append(row, r.Output.Interaction.Summary, r.Output.Interaction.CreatedAt)
		} else {
			row = append(row, "", "")
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save spreadsheet: %w", err)
	}
	return nil
}

func customerValue(output *record.Output, field string) string {
	if output == nil {
		return ""
	}
	if value := output.Customer[field]; value != nil {
		return *value
	}
	return ""
}
