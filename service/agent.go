package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vitorsj/lawyerless/backend/model"
)

// maxNegotiationQuestions caps the questions returned per clause.
const maxNegotiationQuestions = 5

// AgentService runs the per-clause risk analysis through the LLM.
type AgentService struct {
	llm *LLMService
}

// NewAgentService creates an AgentService backed by the given LLM.
func NewAgentService(llm *LLMService) *AgentService {
	return &AgentService{llm: llm}
}

type clauseVerdict struct {
	TLDR                 string   `json:"tldr"`
	Explanation          string   `json:"explanation"`
	WhyItMatters         string   `json:"why_it_matters"`
	RiskFlag             string   `json:"risk_flag"`
	NegotiationQuestions []string `json:"negotiation_questions"`
}

// AnalyzeClauses analyzes every clause in order. A transport-level LLM
// failure aborts the run; a malformed per-clause answer degrades to a
// yellow placeholder analysis instead of failing the whole document.
func (s *AgentService) AnalyzeClauses(ctx context.Context, extraction *model.ExtractionResult, clauses []model.Clause, summary model.ContractSummary, perspective string) ([]model.ClauseAnalysis, error) {
	analyses := make([]model.ClauseAnalysis, 0, len(clauses))

	for _, clause := range clauses {
		user := fmt.Sprintf(
			"Contract type: %s\nAnalysis perspective: %s\n\nClause %s — %s\n\n%s",
			summary.InstrumentType, perspective,
			clause.Number, clause.Heading,
			truncate(clause.Text, maxPromptChars),
		)

		raw, err := s.llm.CompleteJSON(ctx, analysisSystemPrompt, user)
		if err != nil {
			return nil, fmt.Errorf("clause %s: %w", clause.Number, err)
		}

		var verdict clauseVerdict
		if err := json.Unmarshal([]byte(stripJSON(raw)), &verdict); err != nil {
			slog.Warn("unparseable clause analysis, using fallback",
				"clause", clause.Number,
				"error", err,
			)
			verdict = clauseVerdict{
				TLDR:        "Automated analysis unavailable for this clause.",
				Explanation: "The analysis for this clause could not be generated. Review it manually.",
				RiskFlag:    model.RiskYellow,
			}
		}

		analyses = append(analyses, model.ClauseAnalysis{
			ClauseNumber:         clause.Number,
			Heading:              clause.Heading,
			TLDR:                 verdict.TLDR,
			Explanation:          verdict.Explanation,
			WhyItMatters:         verdict.WhyItMatters,
			RiskFlag:             normalizeRiskFlag(verdict.RiskFlag),
			NegotiationQuestions: capQuestions(verdict.NegotiationQuestions),
		})
	}

	return analyses, nil
}

func normalizeRiskFlag(flag string) string {
	switch flag {
	case model.RiskGreen, model.RiskYellow, model.RiskRed:
		return flag
	default:
		return model.RiskYellow
	}
}

func capQuestions(questions []string) []string {
	if len(questions) > maxNegotiationQuestions {
		return questions[:maxNegotiationQuestions]
	}
	return questions
}
