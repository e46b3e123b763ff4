// Package pipeliner translates high-level fetch intents ("get rightmost
// latest sample", "get sample's initial segment", "get next sample") into
// concrete interest batches handed to the network face.
package pipeliner

import (
	"context"
	"sync"
	"time"

	"ndnrtc/internal/core/interestcontrol"
	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/wire"
)

// AccessType distinguishes a rightmost (discovery) fetch from an
// exact-sequence-number fetch, as an explicit enum rather than two
// boolean flags, matching how the state machine already distinguishes
// the two.
type AccessType int

const (
	AccessExact AccessType = iota
	AccessRightmost
)

// Pipeliner tracks, per thread, the current sampleNo for both key and
// delta classes and expresses interests accordingly.
type Pipeliner struct {
	mu sync.Mutex

	face        ports.NetworkFace
	interestCtl *interestcontrol.Control
	lifetime    time.Duration

	base, stream, thread string

	access   AccessType
	seqNo    map[name.Class]uint64
	hasSeqNo map[name.Class]bool

	maxRetransmits int
	retries        map[string]int

	onArrived func(seg wire.Segment, segInfo name.Info)
	onTimeout func(segInfo name.Info)
}

// New creates a Pipeliner for one thread.
func New(face ports.NetworkFace, interestCtl *interestcontrol.Control, base, stream, thread string, lifetime time.Duration) *Pipeliner {
	return &Pipeliner{
		face:        face,
		interestCtl: interestCtl,
		lifetime:    lifetime,
		base:        base,
		stream:      stream,
		thread:      thread,
		seqNo:       make(map[name.Class]uint64),
		hasSeqNo:    make(map[name.Class]bool),
		retries:     make(map[string]int),
	}
}

// SetMaxRetransmits bounds how many times a timed-out interest is
// silently re-expressed before the timeout is surfaced to observers.
func (p *Pipeliner) SetMaxRetransmits(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 {
		n = 0
	}
	p.maxRetransmits = n
}

// SetNeedRightmost marks that the next Express should discover the
// rightmost (most recent) sample rather than an exact number.
func (p *Pipeliner) SetNeedRightmost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.access = AccessRightmost
}

// SetNeedSample marks that the next Express should fetch by exact
// sequence number (the pipeliner's tracked seqNo for the class).
func (p *Pipeliner) SetNeedSample(class name.Class) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.access = AccessExact
}

// Access returns what the next Express will do absent an override.
func (p *Pipeliner) Access() AccessType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.access
}

// SetSequenceNumber sets the starting sequence number the pipeliner
// should track for class (e.g. from a paired sample's pairedSequenceNo).
func (p *Pipeliner) SetSequenceNumber(n uint64, class name.Class) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seqNo[class] = n
	p.hasSeqNo[class] = true
}

// SequenceNumber returns the pipeliner's tracked sequence number for
// class.
func (p *Pipeliner) SequenceNumber(class name.Class) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.hasSeqNo[class]
	return p.seqNo[class], ok
}

// ThreadPrefix returns this pipeliner's base/stream/thread prefix.
func (p *Pipeliner) ThreadPrefix() string {
	return name.ThreadPrefix(p.base, p.stream, p.thread)
}

// OnArrived/OnTimeout register callbacks invoked when Express's
// underlying interests resolve. These feed the consumer's segment
// controller.
func (p *Pipeliner) OnArrived(fn func(seg wire.Segment, segInfo name.Info)) { p.onArrived = fn }
func (p *Pipeliner) OnTimeout(fn func(name.Info))                           { p.onTimeout = fn }

// Express issues interests for the current need against threadPrefix,
// consulting useExactNo to pick rightmost-discovery vs. exact-number
// selectors per the NDN collaborator's matching semantics.
func (p *Pipeliner) Express(ctx context.Context, class name.Class, useExactNo bool) error {
	p.mu.Lock()
	rightmost := p.access == AccessRightmost && !useExactNo
	var targetName string
	var selectors ports.Selectors

	if rightmost {
		targetName = p.ThreadPrefix() + "/" + class.String()
		selectors = ports.Selectors{MustBeFresh: true, ChildSelectorRight: true}
	} else {
		seq := p.seqNo[class]
		targetName = name.Build(p.base, p.stream, p.thread, class, seq, name.SegmentTypeData, 0)
		selectors = ports.Selectors{ExactName: true}
	}
	p.mu.Unlock()

	return p.expressName(ctx, targetName, selectors)
}

// ExpressSegment issues an exact interest for one specific segment of a
// sample: a data or parity segment by index, or the sample's manifest.
// Used to assemble multi-segment samples after their first segment has
// revealed the total counts.
func (p *Pipeliner) ExpressSegment(ctx context.Context, class name.Class, sampleNo uint64, segType name.SegmentType, segNo uint64) error {
	targetName := name.Build(p.base, p.stream, p.thread, class, sampleNo, segType, segNo)
	return p.expressName(ctx, targetName, ports.Selectors{ExactName: true})
}

// expressName issues one interest with the pipeliner's retransmission
// budget: a timeout is silently re-expressed until the budget is spent,
// then surfaced through OnTimeout.
func (p *Pipeliner) expressName(ctx context.Context, targetName string, selectors ports.Selectors) error {
	p.mu.Lock()
	face := p.face
	lifetime := p.lifetime
	onArrived := p.onArrived
	onTimeout := p.onTimeout
	p.mu.Unlock()

	if face == nil {
		return nil
	}

	p.interestCtl.Increment()

	onData := func(interestName string, seg wire.Segment, rawName string) {
		p.clearRetries(targetName)
		if info, err := name.Parse(rawName); err == nil && onArrived != nil {
			onArrived(seg, info)
		}
	}
	var express func() error
	onTimeoutFn := func(interestName string) {
		if p.consumeRetry(targetName) {
			_ = express()
			return
		}
		if onTimeout != nil {
			if info, err := name.Parse(interestName); err == nil {
				onTimeout(info)
			}
		}
		p.interestCtl.Decrement()
	}
	onNackFn := func(interestName string, reason string) {
		p.clearRetries(targetName)
		p.interestCtl.Decrement()
	}
	express = func() error {
		return face.ExpressInterest(ctx, targetName, selectors, lifetime, onData, onTimeoutFn, onNackFn)
	}

	return express()
}

// consumeRetry reports whether a timed-out interest for targetName still
// has retransmission budget, consuming one unit if so.
func (p *Pipeliner) consumeRetry(targetName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retries[targetName] >= p.maxRetransmits {
		delete(p.retries, targetName)
		return false
	}
	p.retries[targetName]++
	return true
}

func (p *Pipeliner) clearRetries(targetName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.retries, targetName)
}

// InterestResolved records that one outstanding interest was answered
// without advancing the sample sequence: follow-up segment and manifest
// arrivals resolve their interest but do not represent a new sample.
func (p *Pipeliner) InterestResolved() {
	p.interestCtl.Decrement()
}

// SegmentArrived advances pipelining (expresses the next interest) for
// threadPrefix if demand remains, and decrements the outstanding pipeline
// count for the interest that just resolved.
func (p *Pipeliner) SegmentArrived(ctx context.Context, info name.Info) {
	p.interestCtl.Decrement()

	p.mu.Lock()
	p.seqNo[info.Class] = info.SampleNo + 1
	p.hasSeqNo[info.Class] = true
	p.access = AccessExact
	p.mu.Unlock()

	if p.interestCtl.Room() > 0 && p.interestCtl.AllowBurst() {
		_ = p.Express(ctx, info.Class, true)
	}
}
