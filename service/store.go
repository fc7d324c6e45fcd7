package service

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/vitorsj/lawyerless/backend/config"
	"github.com/vitorsj/lawyerless/backend/model"
)

// Store is the single source of truth for job status and final results,
// addressed by document ID. Implementations must make each operation atomic
// with respect to concurrent callers; last writer wins per key.
type Store interface {
	// PutStatus stores the status snapshot for a document, creating the
	// job record if it does not exist. It returns the IDs of any jobs
	// evicted to stay within the store's bound, so callers can release
	// resources tied to them.
	PutStatus(status model.AnalysisStatus) []string
	// UpdateStatus replaces the snapshot only if the job still exists.
	// It reports false when the job is gone (deleted mid-flight), in
	// which case the snapshot is dropped.
	UpdateStatus(status model.AnalysisStatus) bool
	// GetStatus returns the current snapshot, or ErrNotFound.
	GetStatus(id string) (model.AnalysisStatus, error)
	// PutResult stores the final analysis result. It reports false when
	// the job no longer exists and the result was dropped.
	PutResult(id string, result *model.ContractAnalysisResponse) bool
	// GetResult returns the completed result. It returns ErrNotFound for
	// unknown documents, ErrNotReady while the job is not completed, and
	// ErrResultMissing when the job is completed but no result is stored.
	GetResult(id string) (*model.ContractAnalysisResponse, error)
	// Delete removes both the status and result entries. No-op if absent.
	Delete(id string)
	// ListAll returns all status snapshots, most recently updated first.
	ListAll() []model.AnalysisStatus
	// Count returns the number of tracked jobs.
	Count() int
}

// MemoryStore is an in-memory Store. The reference deployment is
// intentionally non-durable; swapping in a database-backed Store does not
// require touching call sites.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]model.AnalysisStatus
	results  map[string]*model.ContractAnalysisResponse
	maxJobs  int // 0 = unlimited
}

// NewMemoryStore creates a MemoryStore bounded by cfg.MaxJobs.
func NewMemoryStore(cfg *config.StoreConfig) *MemoryStore {
	maxJobs := 0
	if cfg != nil && cfg.MaxJobs > 0 {
		maxJobs = cfg.MaxJobs
	}
	return &MemoryStore{
		statuses: make(map[string]model.AnalysisStatus),
		results:  make(map[string]*model.ContractAnalysisResponse),
		maxJobs:  maxJobs,
	}
}

func (s *MemoryStore) PutStatus(status model.AnalysisStatus) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[status.DocumentID] = status
	return s.cleanupIfNeeded()
}

func (s *MemoryStore) UpdateStatus(status model.AnalysisStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[status.DocumentID]; !ok {
		return false
	}
	s.statuses[status.DocumentID] = status
	return true
}

func (s *MemoryStore) GetStatus(id string) (model.AnalysisStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[id]
	if !ok {
		return model.AnalysisStatus{}, ErrNotFound
	}
	return status, nil
}

func (s *MemoryStore) PutResult(id string, result *model.ContractAnalysisResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[id]; !ok {
		return false
	}
	s.results[id] = result
	return true
}

func (s *MemoryStore) GetResult(id string) (*model.ContractAnalysisResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[id]
	if !ok {
		return nil, ErrNotFound
	}
	if status.Status != model.StatusCompleted {
		return nil, ErrNotReady
	}
	result, ok := s.results[id]
	if !ok {
		return nil, ErrResultMissing
	}
	return result, nil
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, id)
	delete(s.results, id)
}

func (s *MemoryStore) ListAll() []model.AnalysisStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AnalysisStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		result = append(result, status)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}

// cleanupIfNeeded evicts the oldest jobs when the store exceeds maxJobs and
// returns the evicted IDs. Terminal jobs go first; in-flight jobs are only
// evicted when every terminal job is already gone. Must be called with the
// lock held.
func (s *MemoryStore) cleanupIfNeeded() []string {
	if s.maxJobs <= 0 {
		return nil
	}
	if len(s.statuses) <= s.maxJobs {
		return nil
	}

	statuses := make([]model.AnalysisStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Terminal() != statuses[j].Terminal() {
			return statuses[i].Terminal()
		}
		return statuses[i].Timestamp.Before(statuses[j].Timestamp)
	})

	removeCount := len(statuses) - s.maxJobs
	evicted := make([]string, 0, removeCount)
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old job",
			"document_id", statuses[i].DocumentID,
			"status", statuses[i].Status,
		)
		delete(s.statuses, statuses[i].DocumentID)
		delete(s.results, statuses[i].DocumentID)
		evicted = append(evicted, statuses[i].DocumentID)
	}
	return evicted
}
