// Package face provides an in-process ports.NetworkFace that resolves
// Interest/Data exchange directly against a content store instead of a
// forwarder-mediated transport. The network face is an opaque
// collaborator; no NDN forwarder client library is available in this
// engine's dependency set, so this loopback face stands in for one when
// producer and consumer share a process or a common cache.
package face

import (
	"context"
	"fmt"
	"time"

	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/wire"
)

// Store is the subset of internal/cache.ContentStore this face needs.
type Store interface {
	Get(name string) ([]byte, bool)
	Keys(prefix string) []string
}

// LoopbackFace serves every Interest immediately against store, on its
// own goroutine so callers observe the same asynchronous resolution
// shape a real transport would have.
type LoopbackFace struct {
	store Store
}

// New creates a LoopbackFace reading from store.
func New(store Store) *LoopbackFace {
	return &LoopbackFace{store: store}
}

// ExpressInterest resolves name against the store: ChildSelectorRight
// triggers rightmost-sample discovery under name, otherwise name must
// match an entry exactly. Calls onData or onTimeout on a fresh
// goroutine; never blocks the caller.
func (f *LoopbackFace) ExpressInterest(ctx context.Context, n string, sel ports.Selectors, lifetime time.Duration, onData ports.OnData, onTimeout ports.OnTimeout, onNack ports.OnNack) error {
	go f.serve(n, sel, onData, onTimeout)
	return nil
}

func (f *LoopbackFace) serve(n string, sel ports.Selectors, onData ports.OnData, onTimeout ports.OnTimeout) {
	resolved := n
	if sel.ChildSelectorRight {
		best, ok := f.resolveRightmost(n)
		if !ok {
			onTimeout(n)
			return
		}
		resolved = best
	}

	raw, ok := f.store.Get(resolved)
	if !ok {
		onTimeout(n)
		return
	}

	info, err := name.Parse(resolved)
	if err != nil {
		onTimeout(n)
		return
	}

	// Manifest and meta entries are stored as their own framed payloads,
	// not as wire segments; hand them over opaque.
	if info.SegmentType == name.SegmentTypeManifest || info.SegmentType == name.SegmentTypeMeta {
		onData(n, wire.Segment{Payload: raw}, resolved)
		return
	}

	seg, err := wire.Decode(raw, wire.HeaderKindVideo, info.SegmentType == name.SegmentTypeParity)
	if err != nil {
		onTimeout(n)
		return
	}
	onData(n, seg, resolved)
}

// resolveRightmost finds, among entries directly under threadClassPrefix
// (a "<base>/<stream>/<thread>/<class>" name), the data segment 0 of the
// highest sampleNo published so far.
func (f *LoopbackFace) resolveRightmost(threadClassPrefix string) (string, bool) {
	keys := f.store.Keys(threadClassPrefix + "/")

	var best string
	var bestNo uint64
	found := false
	for _, k := range keys {
		info, err := name.Parse(k)
		if err != nil || info.SegmentType != name.SegmentTypeData || info.SegNo != 0 {
			continue
		}
		if name.ThreadPrefix(info.BasePrefix, info.Stream, info.Thread)+"/"+info.Class.String() != threadClassPrefix {
			continue
		}
		if !found || info.SampleNo > bestNo {
			best, bestNo, found = k, info.SampleNo, true
		}
	}
	return best, found
}

// RegisterPrefix is a no-op: the loopback face serves directly from the
// store rather than dispatching to a registered producer handler.
func (f *LoopbackFace) RegisterPrefix(ctx context.Context, n string, onInterest ports.OnInterest) error {
	return nil
}

// PutData is unsupported on the loopback face; producers publish via
// their ContentCache collaborator instead.
func (f *LoopbackFace) PutData(ctx context.Context, n string, seg wire.Segment) error {
	return fmt.Errorf("face: loopback face does not accept PutData, publish via ContentCache")
}
