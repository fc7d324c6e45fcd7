package model

import (
	"time"
)

// PageText is the extracted text of a single PDF page.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ExtractionResult is the output of the PDF processing stage.
type ExtractionResult struct {
	Filename  string     `json:"filename"`
	PageCount int        `json:"page_count"`
	Pages     []PageText `json:"pages"`
	FullText  string     `json:"full_text"`
	CharCount int        `json:"char_count"`
}

// Clause is one segmented contract clause.
type Clause struct {
	Number  string `json:"number"`
	Heading string `json:"heading"`
	Text    string `json:"text"`
	Page    int    `json:"page"`
}

// Party is one contracting party from the contract summary.
type Party struct {
	Name string `json:"name"`
	Role string `json:"role"` // company, investor, guarantor
	Type string `json:"type,omitempty"`
}

// ContractSummary is the structured "contract sheet" extracted by the LLM.
type ContractSummary struct {
	InstrumentType string  `json:"instrument_type"`
	Parties        []Party `json:"parties"`
	SignatureDate  string  `json:"signature_date,omitempty"`
	EffectiveDate  string  `json:"effective_date,omitempty"`
	MaturityDate   string  `json:"maturity_date,omitempty"`
	PrincipalValue string  `json:"principal_value,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	ValuationCap   string  `json:"valuation_cap,omitempty"`
	Discount       string  `json:"discount,omitempty"`
	GoverningLaw   string  `json:"governing_law,omitempty"`
	Jurisdiction   string  `json:"jurisdiction,omitempty"`
}

// Risk flag values assigned to analyzed clauses.
const (
	RiskGreen  = "green"
	RiskYellow = "yellow"
	RiskRed    = "red"
)

// ClauseAnalysis is the per-clause output of the analysis agent.
type ClauseAnalysis struct {
	ClauseNumber         string   `json:"clause_number"`
	Heading              string   `json:"heading"`
	TLDR                 string   `json:"tldr"`
	Explanation          string   `json:"explanation"`
	WhyItMatters         string   `json:"why_it_matters"`
	RiskFlag             string   `json:"risk_flag"` // green, yellow, red
	NegotiationQuestions []string `json:"negotiation_questions"`
}

// ContractAnalysisResponse is the final analysis result for a document.
// Created once when the pipeline completes and immutable afterwards.
type ContractAnalysisResponse struct {
	DocumentID  string           `json:"document_id"`
	Filename    string           `json:"filename"`
	Perspective string           `json:"perspective"`
	Summary     ContractSummary  `json:"summary"`
	Clauses     []ClauseAnalysis `json:"clauses"`
	AnalyzedAt  time.Time        `json:"analyzed_at"`
}
