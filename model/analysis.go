package model

import (
	"time"
)

// Analysis status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Perspective constants for the clause analysis stage
const (
	PerspectiveFounder  = "founder"
	PerspectiveInvestor = "investor"
)

// ValidPerspective reports whether p is one of the supported perspectives.
func ValidPerspective(p string) bool {
	return p == PerspectiveFounder || p == PerspectiveInvestor
}

// AnalysisStatus is the status snapshot for one document. The same snapshot
// is stored for polling clients and broadcast to websocket subscribers.
type AnalysisStatus struct {
	DocumentID   string    `json:"document_id"`
	Status       string    `json:"status"` // pending, processing, completed, failed
	Progress     int       `json:"progress"`
	Message      string    `json:"message"`
	ErrorDetails string    `json:"error_details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Terminal reports whether the snapshot is in a terminal state.
func (s AnalysisStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
