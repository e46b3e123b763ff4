// Package avsync keeps two collaborating streams (audio, video) in
// bounded playout drift.
package avsync

import "sync"

// DefaultToleranceMs is the default drift tolerance before a correction is
// surfaced to the caller.
const DefaultToleranceMs = 20.0

// streamState is one stream's last observed (local, remote) timestamp
// pair, held under its own lock so each stream updates independently.
type streamState struct {
	mu             sync.Mutex
	hasSample      bool
	lastLocalTsMs  int64
	lastRemoteTsMs int64
}

func (s *streamState) snapshot() (int64, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLocalTsMs, s.lastRemoteTsMs, s.hasSample
}

func (s *streamState) update(localTsMs, remoteTsMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLocalTsMs = localTsMs
	s.lastRemoteTsMs = remoteTsMs
	s.hasSample = true
}

// Sync coordinates exactly two named streams, computing drift between
// them on every sample release.
type Sync struct {
	tolerance float64

	mu      sync.Mutex
	streams map[string]*streamState
}

// New creates a Sync with the given drift tolerance in milliseconds.
func New(toleranceMs float64) *Sync {
	return &Sync{tolerance: toleranceMs, streams: make(map[string]*streamState)}
}

func (s *Sync) stateFor(name string) *streamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[name]
	if !ok {
		st = &streamState{}
		s.streams[name] = st
	}
	return st
}

// SynchronizePacket records stream's new (localTsMs, remoteTsMs) sample
// and, if other has already observed at least one sample, computes the
// drift D that should be applied to stream's next playout delay. Returns
// (0, false) while initialization is incomplete.
func (s *Sync) SynchronizePacket(stream string, localTsMs, remoteTsMs int64, other string) (driftMs float64, ok bool) {
	mine := s.stateFor(stream)
	theirs := s.stateFor(other)

	otherLocal, otherRemote, otherHas := theirs.snapshot()
	mine.update(localTsMs, remoteTsMs)

	if !otherHas {
		return 0, false
	}

	d := float64(remoteTsMs-localTsMs) - float64(otherRemote-otherLocal)
	return d, true
}

// ShouldCorrect reports whether |driftMs| exceeds this Sync's tolerance.
func (s *Sync) ShouldCorrect(driftMs float64) bool {
	if driftMs < 0 {
		driftMs = -driftMs
	}
	return driftMs > s.tolerance
}

// Reset clears all observed stream state.
func (s *Sync) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string]*streamState)
}
