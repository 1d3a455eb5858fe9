package application

import (
	"sync"

	"github.com/davarch/build-notifier/internal/domain"
)

// Watermark holds the last notified build per build type.
// Every write is a max-merge, so values never move backwards.
type Watermark struct {
	mu  sync.RWMutex
	ids map[domain.BuildTypeID]domain.BuildID
}

func NewWatermark() *Watermark {
	return &Watermark{ids: make(map[domain.BuildTypeID]domain.BuildID)}
}

func (w *Watermark) Get(t domain.BuildTypeID) (domain.BuildID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.ids[t]
	return id, ok
}

// Advance raises watermark[t] to id if id is higher. It reports whether the value moved.
func (w *Watermark) Advance(t domain.BuildTypeID, id domain.BuildID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.advanceLocked(t, id)
}

func (w *Watermark) advanceLocked(t domain.BuildTypeID, id domain.BuildID) bool {
	cur, ok := w.ids[t]
	if ok && cur >= id {
		return false
	}
	w.ids[t] = id
	return true
}

// Merge folds a batch of values in under one lock.
func (w *Watermark) Merge(batch map[domain.BuildTypeID]domain.BuildID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for t, id := range batch {
		w.advanceLocked(t, id)
	}
}

// Snapshot returns a copy safe to read without holding the lock.
func (w *Watermark) Snapshot() map[domain.BuildTypeID]domain.BuildID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[domain.BuildTypeID]domain.BuildID, len(w.ids))
	for t, id := range w.ids {
		out[t] = id
	}
	return out
}

// SentSet remembers builds delivered during this process lifetime.
type SentSet struct {
	mu  sync.Mutex
	ids map[domain.BuildID]domain.BuildTypeID
}

func NewSentSet() *SentSet {
	return &SentSet{ids: make(map[domain.BuildID]domain.BuildTypeID)}
}

func (s *SentSet) Contains(id domain.BuildID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SentSet) Add(b domain.BuildSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[b.ID] = b.BuildTypeID
}

func (s *SentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Prune drops entries the resolver can no longer emit: those at or below
// their type's watermark.
func (s *SentSet) Prune(wm map[domain.BuildTypeID]domain.BuildID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.ids {
		if mark, ok := wm[t]; ok && id <= mark {
			delete(s.ids, id)
		}
	}
}
