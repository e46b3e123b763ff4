// Package cache adapts pkg/cache's TTL cache into the producer's
// ContentCache collaborator: published segments live
// here under their full name until their declared freshness elapses,
// matching the Data packet FreshnessPeriod semantics.
package cache

import (
	"time"

	"ndnrtc/pkg/cache"
)

// ContentStore is an in-memory, freshness-aware store of published
// segments, manifests and meta. It satisfies producer.ContentCache.
type ContentStore struct {
	inner *cache.Cache
}

// New creates an empty ContentStore. defaultFreshness is used whenever
// Put is called with freshnessMs <= 0.
func New(defaultFreshness time.Duration) *ContentStore {
	return &ContentStore{inner: cache.NewCache(defaultFreshness)}
}

// Put stores payload under name, expiring it after freshnessMs
// milliseconds.
func (s *ContentStore) Put(name string, payload []byte, freshnessMs int) {
	if freshnessMs <= 0 {
		s.inner.Set(name, payload)
		return
	}
	s.inner.SetWithTTL(name, payload, time.Duration(freshnessMs)*time.Millisecond)
}

// Get retrieves payload for name, if present and not yet stale.
func (s *ContentStore) Get(name string) ([]byte, bool) {
	v, ok := s.inner.Get(name)
	if !ok {
		return nil, false
	}
	payload, ok := v.([]byte)
	return payload, ok
}

// Evict removes name from the store immediately (e.g. on thread removal).
func (s *ContentStore) Evict(name string) {
	s.inner.Delete(name)
}

// Keys returns the live entry names starting with prefix, used by the
// loopback face to resolve rightmost-child discovery against the store
// directly.
func (s *ContentStore) Keys(prefix string) []string {
	return s.inner.Keys(prefix)
}

// Size returns the number of live (non-stale) entries.
func (s *ContentStore) Size() int {
	return s.inner.GetStats().Size
}

// Stop releases the background cleanup goroutine.
func (s *ContentStore) Stop() {
	s.inner.Stop()
}
