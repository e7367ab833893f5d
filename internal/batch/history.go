package batch

import "sync"

// DefaultHistorySize is the number of sealed batches retained.
const DefaultHistorySize = 10

// #region history
// History is a bounded, oldest-first record of sealed batches.
type History struct {
	mu       sync.RWMutex
	max      int
	batches  []Batch
	analyzed map[string]bool
}

// NewHistory creates a history that keeps at most max batches.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, analyzed: make(map[string]bool)}
}

// Append adds a batch, dropping the oldest beyond the cap.
func (h *History) Append(b Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.batches = append(h.batches, b)
	if over := len(h.batches) - h.max; over > 0 {
		for _, old := range h.batches[:over] {
			delete(h.analyzed, old.ID)
		}
		h.batches = append([]Batch(nil), h.batches[over:]...)
	}
}

// Latest returns the newest batch.
func (h *History) Latest() (Batch, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.batches) == 0 {
		return Batch{}, false
	}
	return h.batches[len(h.batches)-1], true
}

// NextUnanalyzed returns the newest batch not yet marked analyzed. Older
// unanalyzed batches are superseded and marked analyzed.
func (h *History) NextUnanalyzed() (Batch, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.batches) == 0 {
		return Batch{}, false
	}
	latest := h.batches[len(h.batches)-1]
	if h.analyzed[latest.ID] {
		return Batch{}, false
	}
	for _, b := range h.batches[:len(h.batches)-1] {
		h.analyzed[b.ID] = true
	}
	return latest, true
}

// MarkAnalyzed flags a batch so NextUnanalyzed skips it.
func (h *History) MarkAnalyzed(id string) {
	h.mu.Lock()
	h.analyzed[id] = true
	h.mu.Unlock()
}

// Analyzed reports whether a batch has been marked analyzed.
func (h *History) Analyzed(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.analyzed[id]
}

// All returns a copy of the retained batches, oldest first.
func (h *History) All() []Batch {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Batch, len(h.batches))
	copy(out, h.batches)
	return out
}

// Len reports how many batches are retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.batches)
}

// #endregion history
