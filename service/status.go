package service

import (
	"log/slog"
	"time"

	"github.com/vitorsj/lawyerless/backend/model"
)

// Tracker is the only sanctioned way pipeline stages communicate progress.
// Every update builds a single snapshot with a single timestamp, persists it
// in the store and broadcasts it through the hub, so polling and push
// clients never observe divergent views of the same instant.
type Tracker struct {
	store Store
	hub   *Hub
}

// NewTracker creates a Tracker writing through the given store and hub.
func NewTracker(store Store, hub *Hub) *Tracker {
	return &Tracker{store: store, hub: hub}
}

func snapshot(id, status string, progress int, message, errorDetails string) model.AnalysisStatus {
	return model.AnalysisStatus{
		DocumentID:   id,
		Status:       status,
		Progress:     progress,
		Message:      message,
		ErrorDetails: errorDetails,
		Timestamp:    time.Now(),
	}
}

// Create seeds the initial snapshot for a freshly submitted document and
// notifies any subscribers already attached to the ID. Jobs evicted from a
// bounded store to make room get their subscriber groups closed, so no
// websocket lingers on a record that no longer exists.
func (t *Tracker) Create(id, status string, progress int, message string) model.AnalysisStatus {
	st := snapshot(id, status, progress, message, "")
	for _, evicted := range t.store.PutStatus(st) {
		t.hub.CloseAll(evicted)
	}
	t.hub.Broadcast(id, st)
	slog.Info("status created", "document_id", id, "status", st.Status, "progress", st.Progress)
	return st
}

// Advance replaces the snapshot for an existing job and broadcasts it. It
// reports false when the job no longer exists: the job was deleted while
// its pipeline run was still executing, and the update was dropped. Callers
// should abandon the run in that case.
func (t *Tracker) Advance(id, status string, progress int, message, errorDetails string) bool {
	st := snapshot(id, status, progress, message, errorDetails)
	if !t.store.UpdateStatus(st) {
		slog.Warn("dropping status update for deleted job", "document_id", id, "status", status)
		return false
	}
	t.hub.Broadcast(id, st)
	slog.Info("status updated",
		"document_id", id,
		"status", st.Status,
		"progress", st.Progress,
	)
	return true
}
