package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/vitorsj/lawyerless/backend/config"
	"github.com/vitorsj/lawyerless/backend/model"
)

// PDFService extracts plain text from PDF documents, page by page.
type PDFService struct {
	maxPages int
}

// NewPDFService creates a PDFService enforcing the configured page cap.
func NewPDFService(cfg *config.PipelineConfig) *PDFService {
	maxPages := 200
	if cfg != nil && cfg.MaxPDFPages > 0 {
		maxPages = cfg.MaxPDFPages
	}
	return &PDFService{maxPages: maxPages}
}

// Extract reads every page of the PDF and returns the combined text. A
// document with no extractable text is an error: the downstream stages have
// nothing to work with.
func (s *PDFService) Extract(ctx context.Context, content []byte, filename string) (*model.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages > s.maxPages {
		return nil, fmt.Errorf("pdf has %d pages, maximum allowed is %d", numPages, s.maxPages)
	}

	result := &model.ExtractionResult{
		Filename:  filename,
		PageCount: numPages,
		Pages:     make([]model.PageText, 0, numPages),
	}

	var full strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text",
				"filename", filename,
				"page", i,
				"error", err,
			)
			continue
		}
		result.Pages = append(result.Pages, model.PageText{Number: i, Text: text})
		full.WriteString(text)
		full.WriteString("\n")
	}

	result.FullText = full.String()
	result.CharCount = len(result.FullText)

	if strings.TrimSpace(result.FullText) == "" {
		return nil, fmt.Errorf("no text could be extracted from %s", filename)
	}

	slog.Info("pdf text extracted",
		"filename", filename,
		"pages", numPages,
		"chars", result.CharCount,
	)
	return result, nil
}
