// Package buffer implements per-sample slot storage: deduplication of
// incoming segments and promotion to playback-ready state.
package buffer

import (
	"sync"

	"ndnrtc/internal/core/name"
)

// State is a slot's position in the lifecycle ladder. Transitions are
// one-directional except the final Locked/Ready -> Free release.
type State int

const (
	StateFree State = iota
	StateNew
	StateAssembling
	StateReady
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateNew:
		return "new"
	case StateAssembling:
		return "assembling"
	case StateReady:
		return "ready"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// SegmentKey identifies one segment within a sample by its index.
type SegmentKey struct {
	SegNo    uint64
	IsParity bool
}

// FetchedSegment is a lightweight, non-owning reference to a segment that
// has arrived for a slot.
type FetchedSegment struct {
	Key     SegmentKey
	Payload []byte
}

// Slot is one in-flight or completed sample. Buffer exclusively owns
// slots; callers (SegmentController, observers) hold handles for the
// duration of a single dispatch only.
type Slot struct {
	mu sync.Mutex

	info          name.Info
	state         State
	playbackNo    uint32
	hasPlaybackNo bool

	totalSegments  uint32
	paritySegments uint32

	fetched   map[SegmentKey][]byte
	requested map[SegmentKey]struct{}
}

func newSlot(info name.Info) *Slot {
	return &Slot{
		info:      info,
		state:     StateNew,
		fetched:   make(map[SegmentKey][]byte),
		requested: make(map[SegmentKey]struct{}),
	}
}

// GetState returns the slot's current lifecycle state.
func (s *Slot) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PlaybackNo returns the sample's playback number, as defined from the
// first segment carrying it in its header. ok is false until that first
// segment has arrived.
func (s *Slot) PlaybackNo() (no uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackNo, s.hasPlaybackNo
}

// GetFetchedSegments returns the set of segment keys received so far.
func (s *Slot) GetFetchedSegments() []SegmentKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]SegmentKey, 0, len(s.fetched))
	for k := range s.fetched {
		keys = append(keys, k)
	}
	return keys
}

// GetMissingSegments returns data segment indices not yet fetched, based
// on the sample's declared totalSegmentsNum. Returns nil until that count
// is known (i.e. before any segment has arrived).
func (s *Slot) GetMissingSegments() []SegmentKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalSegments == 0 {
		return nil
	}
	var missing []SegmentKey
	for i := uint32(0); i < s.totalSegments; i++ {
		key := SegmentKey{SegNo: uint64(i)}
		if _, ok := s.fetched[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsRequested reports whether key has an outstanding interest recorded
// against this slot.
func (s *Slot) IsRequested(key SegmentKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requested[key]
	return ok
}

// Payload returns the payload fetched for key, if any. Used by the
// consumer orchestrator to reassemble a Ready slot's packet.
func (s *Slot) Payload(key SegmentKey) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.fetched[key]
	return p, ok
}

// SegmentCounts returns the slot's declared total data and parity segment
// counts, as learned from the first arriving segment's header.
func (s *Slot) SegmentCounts() (total, parity uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSegments, s.paritySegments
}

// Info returns the namespace info the slot was created with.
func (s *Slot) Info() name.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Receipt describes the effect of one segment arrival: which segment,
// which slot, whether this was the slot's first segment, and whether the
// slot became ready as a result.
type Receipt struct {
	Slot            *Slot
	Key             SegmentKey
	FirstArrival    bool
	PromotedToReady bool
}

// ArrivalInfo is the subset of a wire segment's header the buffer needs
// to update a slot.
type ArrivalInfo struct {
	Key               SegmentKey
	Payload           []byte
	TotalSegmentsNum  uint32
	ParitySegmentsNum uint32
	PlaybackNo        uint32
}

// Observer is notified of buffer-level events.
type Observer interface {
	OnNewRequest(slot *Slot, keys []SegmentKey)
	OnNewData(receipt Receipt)
}

// Buffer is the exclusive owner of all slots, keyed by sample identity
// (thread, class, sampleNo).
type Buffer struct {
	mu        sync.Mutex
	slots     map[string]*Slot
	observers []Observer

	// fecThreshold returns whether present data + parity counts allow
	// recovery; defaults to "present data+parity >= total data segments".
	fecThreshold func(present, parityPresent int, total, parityTotal uint32) bool
}

// SlotID identifies a slot by its sample coordinates.
type SlotID struct {
	Thread   string
	Class    name.Class
	SampleNo uint64
}

func (id SlotID) key() string {
	return id.Thread + "|" + id.Class.String() + "|" + itoa(id.SampleNo)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{
		slots: make(map[string]*Slot),
		fecThreshold: func(present, parityPresent int, total, parityTotal uint32) bool {
			return uint32(present+parityPresent) >= total
		},
	}
}

// Attach registers an observer.
func (b *Buffer) Attach(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Detach removes a previously attached observer.
func (b *Buffer) Detach(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.observers {
		if existing == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

// SlotFor returns the slot for id, creating it (state New) on first
// access).
func (b *Buffer) SlotFor(id SlotID, info name.Info) *Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := id.key()
	if s, ok := b.slots[k]; ok {
		return s
	}
	s := newSlot(info)
	b.slots[k] = s
	return s
}

// Lookup returns the slot for id if it exists, without creating one.
func (b *Buffer) Lookup(id SlotID) (*Slot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[id.key()]
	return s, ok
}

// SegmentsRequested records pending interests against a slot and notifies
// observers of the new request.
func (b *Buffer) SegmentsRequested(id SlotID, info name.Info, keys []SegmentKey) {
	slot := b.SlotFor(id, info)
	slot.mu.Lock()
	for _, k := range keys {
		slot.requested[k] = struct{}{}
	}
	slot.mu.Unlock()

	b.mu.Lock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.Unlock()
	for _, o := range observers {
		o.OnNewRequest(slot, keys)
	}
}

// Received updates a slot with an arrived segment, possibly promoting it
// to Assembling or Ready, and emits OnNewData to observers. A slot may
// never transition Ready -> Assembling: once Ready, further arrivals are
// recorded but do not change state.
func (b *Buffer) Received(id SlotID, info name.Info, arrival ArrivalInfo) Receipt {
	slot := b.SlotFor(id, info)

	slot.mu.Lock()
	firstArrival := len(slot.fetched) == 0
	delete(slot.requested, arrival.Key)
	slot.fetched[arrival.Key] = arrival.Payload
	if arrival.TotalSegmentsNum > 0 {
		slot.totalSegments = arrival.TotalSegmentsNum
	}
	if arrival.ParitySegmentsNum > 0 {
		slot.paritySegments = arrival.ParitySegmentsNum
	}
	if !slot.hasPlaybackNo {
		slot.playbackNo = arrival.PlaybackNo
		slot.hasPlaybackNo = true
	}

	promoted := false
	if slot.state == StateNew {
		slot.state = StateAssembling
	}
	if slot.state == StateAssembling && slot.totalSegments > 0 {
		dataPresent, parityPresent := 0, 0
		for k := range slot.fetched {
			if k.IsParity {
				parityPresent++
			} else {
				dataPresent++
			}
		}
		if b.fecThreshold(dataPresent, parityPresent, slot.totalSegments, slot.paritySegments) {
			slot.state = StateReady
			promoted = true
		}
	}
	slot.mu.Unlock()

	receipt := Receipt{Slot: slot, Key: arrival.Key, FirstArrival: firstArrival, PromotedToReady: promoted}

	b.mu.Lock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.Unlock()
	for _, o := range observers {
		o.OnNewData(receipt)
	}

	return receipt
}

// Lock transitions a Ready slot to Locked (handed off to playback).
func (s *Slot) Lock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return false
	}
	s.state = StateLocked
	return true
}

// Free releases a Locked (or any) slot back to Free after playout or
// eviction.
func (s *Slot) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFree
	s.fetched = make(map[SegmentKey][]byte)
	s.requested = make(map[SegmentKey]struct{})
	s.totalSegments = 0
	s.paritySegments = 0
	s.hasPlaybackNo = false
}

// Evict removes id's slot from the buffer entirely.
func (b *Buffer) Evict(id SlotID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, id.key())
}

// Reset empties the buffer, freeing every slot. Used on starvation
// recovery.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = make(map[string]*Slot)
}

// OccupiedCount returns the number of slots not in StateFree, for
// occupancy reporting.
func (b *Buffer) OccupiedCount() int {
	b.mu.Lock()
	slots := make([]*Slot, 0, len(b.slots))
	for _, s := range b.slots {
		slots = append(slots, s)
	}
	b.mu.Unlock()

	n := 0
	for _, s := range slots {
		if s.GetState() != StateFree {
			n++
		}
	}
	return n
}
