package index

import (
	"sync"
	"time"
)

// SeenSet remembers the URLs already processed by one pipeline instance.
// It only grows: removing a link from storage does not make it unseen.
type SeenSet struct {
	mu         sync.RWMutex
	urls       map[string]struct{}
	lastSeeded time.Time // Timestamp of the last seed from storage
}

// NewSeenSet creates an empty seen-set
func NewSeenSet() *SeenSet {
	return &SeenSet{
		urls: make(map[string]struct{}),
	}
}

// Seed merges urls loaded from durable storage into the set
func (s *SeenSet) Seed(urls map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for u := range urls {
		s.urls[u] = struct{}{}
	}
	s.lastSeeded = time.Now()
}

// Has reports whether url was already seen
func (s *SeenSet) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[url]
	return ok
}

// Add marks url as seen. It reports whether url was new.
func (s *SeenSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Count returns the number of distinct URLs seen
func (s *SeenSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.urls)
}

// GetLastSeeded returns the timestamp of the last seed from storage
func (s *SeenSet) GetLastSeeded() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSeeded
}
