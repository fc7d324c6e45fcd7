package service

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/vitorsj/lawyerless/backend/model"
)

// Heading patterns that open a new clause. Investment contracts in the wild
// mix "CLÁUSULA PRIMEIRA", "Section 3", "Artigo 5º" and bare numbered
// headings like "4.1 Conversion".
var (
	clausulaRe = regexp.MustCompile(`(?i)^\s*CL[ÁA]USULA\s+\S+`)
	sectionRe  = regexp.MustCompile(`(?i)^\s*(?:section|artigo|art\.)\s+([0-9IVXLCÀ-ÿªº°.]+)`)
	numberedRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\s*[.):\-–]\s+\S`)
)

// SegmenterService splits extracted contract text into clauses using
// heading heuristics over the page texts.
type SegmenterService struct{}

// NewSegmenterService creates a SegmenterService.
func NewSegmenterService() *SegmenterService {
	return &SegmenterService{}
}

// Segment walks the extraction page by page and opens a new clause at every
// recognized heading line. When no heading is found at all, the whole text
// becomes a single clause so the analysis stages still have input.
func (s *SegmenterService) Segment(extraction *model.ExtractionResult) ([]model.Clause, error) {
	var clauses []model.Clause
	var current *model.Clause
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(body.String())
		if current.Text != "" {
			clauses = append(clauses, *current)
		}
		current = nil
		body.Reset()
	}

	for _, page := range extraction.Pages {
		for _, line := range strings.Split(page.Text, "\n") {
			if number, ok := headingNumber(line); ok {
				flush()
				current = &model.Clause{
					Number:  number,
					Heading: strings.TrimSpace(line),
					Page:    page.Number,
				}
				continue
			}
			if current != nil {
				body.WriteString(line)
				body.WriteString("\n")
			}
		}
	}
	flush()

	if len(clauses) == 0 {
		slog.Warn("no clause headings found, treating document as a single clause",
			"filename", extraction.Filename,
		)
		firstPage := 1
		if len(extraction.Pages) > 0 {
			firstPage = extraction.Pages[0].Number
		}
		clauses = append(clauses, model.Clause{
			Number:  "1",
			Heading: extraction.Filename,
			Text:    strings.TrimSpace(extraction.FullText),
			Page:    firstPage,
		})
	}

	slog.Info("clauses segmented",
		"filename", extraction.Filename,
		"count", len(clauses),
	)
	return clauses, nil
}

// headingNumber reports whether the line opens a new clause and extracts a
// clause number for it.
func headingNumber(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	if m := clausulaRe.FindString(trimmed); m != "" {
		fields := strings.Fields(m)
		return strings.Trim(fields[len(fields)-1], ".-:"), true
	}
	if m := sectionRe.FindStringSubmatch(trimmed); m != nil {
		return strings.Trim(m[1], "."), true
	}
	if m := numberedRe.FindStringSubmatch(trimmed); m != nil {
		return m[1], true
	}
	return "", false
}
