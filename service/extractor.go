package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vitorsj/lawyerless/backend/model"
)

// maxPromptChars bounds how much contract text goes into a single prompt.
const maxPromptChars = 12000

// ExtractorService extracts the structured contract summary with the LLM.
type ExtractorService struct {
	llm *LLMService
}

// NewExtractorService creates an ExtractorService backed by the given LLM.
func NewExtractorService(llm *LLMService) *ExtractorService {
	return &ExtractorService{llm: llm}
}

// ExtractSummary sends the document text and the clause outline to the LLM
// and decodes the structured contract sheet from its JSON answer.
func (s *ExtractorService) ExtractSummary(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause) (model.ContractSummary, error) {
	var outline strings.Builder
	for _, clause := range clauses {
		fmt.Fprintf(&outline, "- %s %s\n", clause.Number, clause.Heading)
	}

	user := fmt.Sprintf("Clause outline:\n%s\nDocument text:\n%s",
		outline.String(), truncate(extraction.FullText, maxPromptChars))

	raw, err := s.llm.CompleteJSON(ctx, summarySystemPrompt, user)
	if err != nil {
		return model.ContractSummary{}, err
	}

	var summary model.ContractSummary
	if err := json.Unmarshal([]byte(stripJSON(raw)), &summary); err != nil {
		return model.ContractSummary{}, fmt.Errorf("failed to decode contract summary: %w", err)
	}

	slog.Info("contract summary extracted",
		"filename", extraction.Filename,
		"instrument_type", summary.InstrumentType,
		"parties", len(summary.Parties),
	)
	return summary, nil
}
