package service

import (
	"log/slog"
	"sync"

	"github.com/vitorsj/lawyerless/backend/model"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber whose
// buffer fills up is considered dead and gets pruned on the next broadcast.
const subscriberBuffer = 16

// Subscriber is one live push-notification consumer bound to a single
// document ID. The hub owns the registration; the transport (websocket
// connection) is owned by the handler that created the subscriber.
type Subscriber struct {
	ch        chan model.AnalysisStatus
	closeOnce sync.Once
}

// Updates returns the channel the hub delivers status snapshots on. The
// channel is closed when the subscriber is removed from the hub.
func (s *Subscriber) Updates() <-chan model.AnalysisStatus {
	return s.ch
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// Hub tracks live subscribers per document ID and fans out status updates.
type Hub struct {
	mu     sync.RWMutex
	groups map[string][]*Subscriber
}

// NewHub creates an empty notification hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string][]*Subscriber),
	}
}

// Subscribe registers a new subscriber under the document's group.
func (h *Hub) Subscribe(id string) *Subscriber {
	sub := &Subscriber{ch: make(chan model.AnalysisStatus, subscriberBuffer)}

	h.mu.Lock()
	h.groups[id] = append(h.groups[id], sub)
	h.mu.Unlock()

	slog.Debug("subscriber registered", "document_id", id)
	return sub
}

// Unsubscribe removes the subscriber from the document's group and closes
// its channel. An empty group is deleted, never retained.
func (h *Hub) Unsubscribe(id string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id, sub)
}

func (h *Hub) removeLocked(id string, sub *Subscriber) {
	subs, ok := h.groups[id]
	if !ok {
		return
	}
	for i, s := range subs {
		if s == sub {
			h.groups[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.groups[id]) == 0 {
		delete(h.groups, id)
	}
	sub.close()
}

// Broadcast delivers the snapshot to every subscriber currently in the
// document's group. A subscriber that cannot accept the delivery (full
// buffer, abandoned consumer) is pruned without aborting delivery to the
// remaining subscribers.
//
// The sends happen under the read lock: they never block (buffered channel,
// non-blocking select) and channels are only closed under the write lock,
// so a concurrent Unsubscribe or CloseAll cannot close a channel mid-send.
func (h *Hub) Broadcast(id string, status model.AnalysisStatus) {
	h.mu.RLock()
	var dead []*Subscriber
	for _, sub := range h.groups[id] {
		select {
		case sub.ch <- status:
		default:
			dead = append(dead, sub)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, sub := range dead {
			slog.Warn("pruning unresponsive subscriber", "document_id", id)
			h.removeLocked(id, sub)
		}
		h.mu.Unlock()
	}
}

// CloseAll force-closes every subscriber for the document and removes the
// group. Used when a job is deleted. The closes happen under the write lock
// to uphold the Broadcast send invariant.
func (h *Hub) CloseAll(id string) {
	h.mu.Lock()
	subs := h.groups[id]
	delete(h.groups, id)
	for _, sub := range subs {
		sub.close()
	}
	h.mu.Unlock()
	if len(subs) > 0 {
		slog.Info("closed subscribers for deleted document",
			"document_id", id,
			"count", len(subs),
		)
	}
}

// ConnectionCount returns the total number of live subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.groups {
		total += len(subs)
	}
	return total
}
