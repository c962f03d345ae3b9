package export

import (
	"context"
	"fmt"
)

type pdfRenderer func(ctx context.Context, html, title string) (*Result, error)

// Service turns record sheets into PDF files.
type Service struct {
	render pdfRenderer
}

// NewService creates an export service backed by headless Chrome.
func NewService() *Service {
	return &Service{render: exportPDF}
}

// ExportPDF renders the sheet to HTML and prints it. It returns
// ErrPDFDependencyMissing when no Chrome binary is installed.
func (s *Service) ExportPDF(ctx context.Context, sheet Sheet) (*Result, error) {
	if sheet.Title == "" {
		sheet.Title = "Interaction " + sheet.ID
	}
	html, err := RenderRecordHTML(sheet)
	if err != nil {
		return nil, fmt.Errorf("render record sheet: %w", err)
	}
	return s.render(ctx, html, sheet.Title)
}
