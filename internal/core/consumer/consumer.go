// Package consumer wires the independently-testable collaborators in
// internal/core (segment controller, buffer, DRD estimator, interest
// control, latency control, pipeliner, state machine, playback,
// validator) into one running per-thread subscription. It holds no
// algorithm of its own beyond the glue: the state machine's transition
// table lives in statemachine, and this package supplies the Actions and
// segctl.Observer it calls back through.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ndnrtc/internal/core/avsync"
	"ndnrtc/internal/core/buffer"
	"ndnrtc/internal/core/codec"
	"ndnrtc/internal/core/drd"
	"ndnrtc/internal/core/interestcontrol"
	"ndnrtc/internal/core/latencycontrol"
	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/pipeliner"
	"ndnrtc/internal/core/playback"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/segctl"
	"ndnrtc/internal/core/statemachine"
	"ndnrtc/internal/core/validator"
	"ndnrtc/internal/core/wire"
	"ndnrtc/internal/monitoring"
	apperrors "ndnrtc/pkg/errors"
	"ndnrtc/pkg/tracing"
	"ndnrtc/pkg/validation"
)

// EventPublisher is the observable-surface sink:
// StateUpdate, Rebuffering, VerificationResult. Satisfied by
// internal/eventbus.Bus in cmd/consumer; nil is a valid, silent no-op
// sink.
type EventPublisher interface {
	PublishStateUpdate(ctx context.Context, thread, from, to string) error
	PublishRebuffering(ctx context.Context, thread string) error
	PublishVerificationResult(ctx context.Context, thread string, samplePrefix, state, failReason string) error
}

// ThreadConfig configures one thread subscription.
type ThreadConfig struct {
	Base, Stream, Thread, Identity string
	IsVideo                        bool // video tracks paired key/delta classes; audio tracks delta only

	SampleRateHz     float64
	InterestLifetime time.Duration
	MaxIdle          time.Duration // starvation timeout
	MaxRetransmits   int           // nRtx: silent re-expressions per timed-out interest
	JitterTargetMs   int64
	MaxWaitForHeadMs int64
}

// Consumer owns the process-wide singletons (the DRD estimator among
// them) and every active per-thread subscription.
type Consumer struct {
	mu      sync.Mutex
	face    ports.NetworkFace
	signer  ports.Signer
	drd     *drd.Estimator
	metrics *monitoring.Collector
	events  EventPublisher
	logger  *zap.Logger

	threads map[string]*ThreadSession
}

// New creates a Consumer bound to face/signer. metrics and events may be
// nil (no-op). logger nil uses a no-op logger.
func New(face ports.NetworkFace, signer ports.Signer, metrics *monitoring.Collector, events EventPublisher, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		face:    face,
		signer:  signer,
		drd:     drd.New(0, 0),
		metrics: metrics,
		events:  events,
		logger:  logger,
		threads: make(map[string]*ThreadSession),
	}
}

// DRD exposes the shared DRD estimator, e.g. for a status endpoint.
func (c *Consumer) DRD() *drd.Estimator { return c.drd }

// Subscribe creates and wires a new ThreadSession for cfg and starts its
// background starvation and playout loops. Call ThreadSession.Start to
// dispatch the initial Start event.
func (c *Consumer) Subscribe(ctx context.Context, cfg ThreadConfig) (*ThreadSession, error) {
	if err := validation.ValidateBasePrefix(cfg.Base); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := validation.ValidateStreamName(cfg.Stream); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := validation.ValidateThreadName(cfg.Thread); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}

	c.mu.Lock()
	if _, exists := c.threads[cfg.Thread]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("consumer: thread %q already subscribed", cfg.Thread)
	}
	c.mu.Unlock()

	ts := newThreadSession(ctx, c, cfg)

	c.mu.Lock()
	c.threads[cfg.Thread] = ts
	c.mu.Unlock()

	go ts.segCtl.Run(maxIdleCheckInterval(cfg.MaxIdle))
	go ts.playout.Run(ts.ctx, 10*time.Millisecond)

	return ts, nil
}

func maxIdleCheckInterval(maxIdle time.Duration) time.Duration {
	if maxIdle <= 0 {
		return time.Second
	}
	quarter := maxIdle / 4
	if quarter < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return quarter
}

// Unsubscribe stops and removes a thread's subscription. Idempotent.
func (c *Consumer) Unsubscribe(threadName string) {
	c.mu.Lock()
	ts, ok := c.threads[threadName]
	delete(c.threads, threadName)
	c.mu.Unlock()
	if !ok {
		return
	}
	ts.Stop()
}

// Thread returns the named subscription, if active.
func (c *Consumer) Thread(threadName string) (*ThreadSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.threads[threadName]
	return ts, ok
}

// streamDrift adapts an avsync.Sync to playback.DriftSource for one side
// of a paired subscription: each sample release feeds the shared Sync
// and caches the resulting adjustment for the playout loop to consult on
// its next release.
type streamDrift struct {
	sync          *avsync.Sync
	stream, other string

	mu      sync.Mutex
	driftMs float64
}

func (d *streamDrift) update(localTsMs, remoteTsMs int64) {
	drift, ok := d.sync.SynchronizePacket(d.stream, localTsMs, remoteTsMs, d.other)
	if !ok {
		return
	}
	if !d.sync.ShouldCorrect(drift) {
		drift = 0
	}
	d.mu.Lock()
	d.driftMs = drift
	d.mu.Unlock()
}

// DriftMs satisfies playback.DriftSource.
func (d *streamDrift) DriftMs() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.driftMs
}

// PairAV links two already-subscribed thread sessions (e.g. a video and
// an audio thread of the same source) under a shared avsync.Sync, so
// each one's playout delay is adjusted by the other's drift.
// toleranceMs <= 0 uses avsync.DefaultToleranceMs.
func (c *Consumer) PairAV(threadA, threadB string, toleranceMs float64) error {
	c.mu.Lock()
	a, okA := c.threads[threadA]
	b, okB := c.threads[threadB]
	c.mu.Unlock()
	if !okA {
		return fmt.Errorf("consumer: thread %q not subscribed", threadA)
	}
	if !okB {
		return fmt.Errorf("consumer: thread %q not subscribed", threadB)
	}
	if toleranceMs <= 0 {
		toleranceMs = avsync.DefaultToleranceMs
	}

	avSync := avsync.New(toleranceMs)
	driftA := &streamDrift{sync: avSync, stream: threadA, other: threadB}
	driftB := &streamDrift{sync: avSync, stream: threadB, other: threadA}

	a.playout.SetDriftSource(driftA)
	b.playout.SetDriftSource(driftB)
	a.avUpdate = func(s playback.Sample) { driftA.update(time.Now().UnixMilli(), s.TimestampMs) }
	b.avUpdate = func(s playback.Sample) { driftB.update(time.Now().UnixMilli(), s.TimestampMs) }
	return nil
}

// ThreadSession is one active thread subscription: pipeliner, interest
// window, latency control, buffer, segment controller, state machine and
// playback, all scoped to a single base/stream/thread.
type ThreadSession struct {
	cfg    ThreadConfig
	parent *Consumer

	ctx    context.Context
	cancel context.CancelFunc

	pipe        *pipeliner.Pipeliner
	interestCtl *interestcontrol.Control
	latencyCtl  *latencycontrol.Control
	buf         *buffer.Buffer
	segCtl      *segctl.Controller
	sm          *statemachine.Machine
	queue       *playback.Queue
	playout     *playback.Playout
	validator   *validator.Validator

	mu                sync.Mutex
	sentAt            map[name.Class]time.Time
	slotByPlaybackNo  map[uint32]buffer.SlotID
	manifestRequested map[string]struct{} // sample prefixes whose manifest was asked for
	reachedWatermark  bool

	onSample func(playback.Sample)
	avUpdate func(playback.Sample) // set by PairAV, feeds the shared avsync.Sync
}

func newThreadSession(ctx context.Context, c *Consumer, cfg ThreadConfig) *ThreadSession {
	sctx, cancel := context.WithCancel(ctx)

	interestCtl := interestcontrol.New(c.drd, interestcontrol.StrategyDefault{})
	interestCtl.TargetRateUpdate(cfg.SampleRateHz)
	c.drd.Attach(interestCtl)

	latencyCtl := latencycontrol.New(cfg.InterestLifetime)
	latencyCtl.TargetRateUpdate(cfg.SampleRateHz)

	pipe := pipeliner.New(c.face, interestCtl, cfg.Base, cfg.Stream, cfg.Thread, cfg.InterestLifetime)
	pipe.SetMaxRetransmits(cfg.MaxRetransmits)
	buf := buffer.New()
	segCtl := segctl.New(cfg.MaxIdle)
	queue := playback.NewQueue(cfg.JitterTargetMs)
	playout := playback.NewPlayout(queue, time.Duration(cfg.MaxWaitForHeadMs)*time.Millisecond)
	v := validator.New(c.signer, c.logger)

	ts := &ThreadSession{
		cfg: cfg, parent: c,
		ctx: sctx, cancel: cancel,
		pipe: pipe, interestCtl: interestCtl, latencyCtl: latencyCtl,
		buf: buf, segCtl: segCtl, queue: queue, playout: playout, validator: v,
		sentAt:            make(map[name.Class]time.Time),
		slotByPlaybackNo:  make(map[uint32]buffer.SlotID),
		manifestRequested: make(map[string]struct{}),
	}
	ts.sm = statemachine.New(ts, cfg.IsVideo)

	pipe.OnArrived(func(seg wire.Segment, info name.Info) { segCtl.OnData(seg, info) })
	pipe.OnTimeout(func(info name.Info) { segCtl.OnTimeout(info) })
	segCtl.Attach(ts)
	v.Attach(ts)
	queue.Attach(ts)
	playout.OnRelease(func(s playback.Sample) {
		ts.freeSlot(s.PlaybackNo)
		ts.checkRebuffering()
		if ts.avUpdate != nil {
			ts.avUpdate(s)
		}
		if ts.onSample != nil {
			ts.onSample(s)
		}
	})

	return ts
}

// OnSample registers the callback invoked with every sample released by
// this thread's playout.
func (t *ThreadSession) OnSample(fn func(playback.Sample)) { t.onSample = fn }

// Start dispatches the initial Start event, kicking the state machine
// from Idle into WaitForRightmost.
func (t *ThreadSession) Start() {
	t.sm.Dispatch(statemachine.Event{Kind: statemachine.EventStart, IsVideo: t.cfg.IsVideo})
}

// Stop cancels the subscription's background loops and idempotently
// closes its timers.
func (t *ThreadSession) Stop() {
	t.cancel()
	t.segCtl.Close()
}

// State returns the underlying state machine's current state.
func (t *ThreadSession) State() statemachine.State { return t.sm.State() }

// Buffer exposes the thread's slot buffer, e.g. for an occupancy status
// endpoint.
func (t *ThreadSession) Buffer() *buffer.Buffer { return t.buf }

// --- segctl.Observer ---

// SegmentArrived is the single entry point for an incoming segment: it
// feeds the DRD estimator, updates the buffer, dispatches manifest
// verification, runs the latency-control decision loop, and advances
// both the state machine and the pipeliner.
func (t *ThreadSession) SegmentArrived(seg wire.Segment, info name.Info) {
	t.mu.Lock()
	sentAt, had := t.sentAt[info.Class]
	delete(t.sentAt, info.Class)
	t.mu.Unlock()

	if had {
		drdMs := float64(time.Since(sentAt).Milliseconds())
		t.parent.drd.NewValue(drdMs, drd.IsOriginal(float64(seg.Video.GenerationDelayMs)))
		t.latencyCtl.OnDrdValue(t.parent.drd)
		if t.parent.metrics != nil {
			t.parent.metrics.RecordSegmentFetch(time.Since(sentAt))
			t.parent.metrics.SetDRD(t.cfg.Thread, t.parent.drd.GetOriginalEstimation(), t.parent.drd.GetCachedEstimation())
		}
	}

	firstOfSample := false
	switch info.SegmentType {
	case name.SegmentTypeManifest:
		// One manifest signature covers every segment in the sample.
		body, sig, err := codec.DecodeManifest(seg.Payload)
		if err != nil {
			if t.parent.metrics != nil {
				t.parent.metrics.RecordMalformed(t.cfg.Thread)
			}
			t.parent.logger.Debug("malformed manifest", zap.String("thread", t.cfg.Thread), zap.Error(err))
		} else {
			t.validator.VerifyManifest(t.ctx, info, body, sig, t.cfg.Identity)
		}
		t.pipe.InterestResolved()
	case name.SegmentTypeData, name.SegmentTypeParity:
		t.validator.CheckSegmentDigest(info, seg.Payload)
		firstOfSample = t.handleDataOrParity(seg, info)
		if firstOfSample {
			t.pipe.SegmentArrived(t.ctx, info)
		} else {
			t.pipe.InterestResolved()
		}
	}

	// Only the first segment of a sample is a sample-arrival event for
	// the latency decision loop and the state machine; follow-up segment
	// and manifest arrivals would skew the inter-arrival statistics.
	if firstOfSample {
		latCmd := t.latencyCtl.SampleArrived()
		switch latCmd {
		case latencycontrol.Increase:
			t.interestCtl.Burst()
		case latencycontrol.Decrease:
			t.interestCtl.Withhold()
		}
		t.sm.Dispatch(statemachine.Event{Kind: statemachine.EventSegment, SegmentInfo: info, PairedSeqNo: uint64(seg.Video.PairedSequenceNo), IsVideo: t.cfg.IsVideo, LatencyCmd: latCmd})
	}

	if t.parent.metrics != nil {
		t.parent.metrics.SetPipelineWindow(t.cfg.Thread, int(t.interestCtl.PipelineLimit()))
		t.parent.metrics.SetBufferOccupancy(t.cfg.Thread, t.buf.OccupiedCount())
	}
}

// handleDataOrParity routes one data or parity segment into the buffer,
// requesting whatever the slot still needs or handing the finished
// sample to the playback queue. Reports whether this was the sample's
// first segment.
func (t *ThreadSession) handleDataOrParity(seg wire.Segment, info name.Info) bool {
	slotID := buffer.SlotID{Thread: t.cfg.Thread, Class: info.Class, SampleNo: info.SampleNo}
	key := buffer.SegmentKey{SegNo: info.SegNo, IsParity: info.SegmentType == name.SegmentTypeParity}

	arrival := buffer.ArrivalInfo{
		Key:               key,
		Payload:           seg.Payload,
		TotalSegmentsNum:  seg.Video.TotalSegmentsNum,
		ParitySegmentsNum: seg.Video.ParitySegmentsNum,
		PlaybackNo:        seg.Video.PlaybackNo,
	}
	receipt := t.buf.Received(slotID, info, arrival)
	t.requestManifestOnce(info)
	if !receipt.PromotedToReady {
		t.requestMissing(slotID, info, receipt)
		return receipt.FirstArrival
	}

	_, span := tracing.TraceSampleAssembly(t.ctx, t.cfg.Thread, info.Class.String(), info.SampleNo)
	packet, err := reassembleSlot(receipt.Slot)
	if err != nil {
		span.RecordError(err)
		span.End()
		var re *codec.ReassemblyError
		if errors.As(err, &re) {
			appErr := apperrors.NewFECIrrecoverable(name.ThreadPrefix(t.cfg.Base, t.cfg.Stream, t.cfg.Thread), re.Have, re.Need)
			t.parent.logger.Warn(appErr.Error(), zap.String("code", string(appErr.Code)))
		} else {
			t.parent.logger.Debug("reassembly failed", zap.String("thread", t.cfg.Thread), zap.Error(err))
		}
		return receipt.FirstArrival
	}
	span.End()
	receipt.Slot.Lock()

	// The producer prepends a common header to the packet before slicing;
	// it only becomes readable once the sample is whole.
	pkt, err := wire.Decode(packet, wire.HeaderKindCommon, false)
	if err != nil {
		if t.parent.metrics != nil {
			t.parent.metrics.RecordMalformed(t.cfg.Thread)
		}
		t.parent.logger.Debug("malformed sample packet", zap.String("thread", t.cfg.Thread), zap.Error(err))
		return receipt.FirstArrival
	}

	playbackNo, _ := receipt.Slot.PlaybackNo()
	t.mu.Lock()
	t.slotByPlaybackNo[playbackNo] = slotID
	t.mu.Unlock()
	t.queue.Push(playback.Sample{
		PlaybackNo:  playbackNo,
		TimestampMs: int64(pkt.Common.PublishTimestampMs),
		Payload:     pkt.Payload,
	})
	return receipt.FirstArrival
}

// requestManifestOnce expresses one interest for the sample's manifest
// the first time any of its segments arrives.
func (t *ThreadSession) requestManifestOnce(info name.Info) {
	t.mu.Lock()
	if _, done := t.manifestRequested[info.SamplePrefix]; done {
		t.mu.Unlock()
		return
	}
	t.manifestRequested[info.SamplePrefix] = struct{}{}
	t.mu.Unlock()
	_ = t.pipe.ExpressSegment(t.ctx, info.Class, info.SampleNo, name.SegmentTypeManifest, 0)
}

// requestMissing asks for the data segments the slot still lacks, now
// that the first arrival has revealed the sample's total segment count.
func (t *ThreadSession) requestMissing(slotID buffer.SlotID, info name.Info, receipt buffer.Receipt) {
	var keys []buffer.SegmentKey
	for _, k := range receipt.Slot.GetMissingSegments() {
		if !receipt.Slot.IsRequested(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	t.buf.SegmentsRequested(slotID, info, keys)
	for _, k := range keys {
		segType := name.SegmentTypeData
		if k.IsParity {
			segType = name.SegmentTypeParity
		}
		_ = t.pipe.ExpressSegment(t.ctx, info.Class, info.SampleNo, segType, k.SegNo)
	}
}

// checkRebuffering reports the playout queue falling empty after having
// reached its watermark once.
func (t *ThreadSession) checkRebuffering() {
	t.mu.Lock()
	wasAt := t.reachedWatermark
	atNow := t.queue.AtWatermark()
	empty := t.queue.Len() == 0
	if atNow {
		t.reachedWatermark = true
	} else if wasAt && empty {
		t.reachedWatermark = false
	}
	t.mu.Unlock()

	if wasAt && empty && t.parent.events != nil {
		_ = t.parent.events.PublishRebuffering(t.ctx, t.cfg.Thread)
	}
}

// freeSlot releases a played-out sample's slot back to the buffer.
func (t *ThreadSession) freeSlot(playbackNo uint32) {
	t.mu.Lock()
	id, ok := t.slotByPlaybackNo[playbackNo]
	delete(t.slotByPlaybackNo, playbackNo)
	t.mu.Unlock()
	if !ok {
		return
	}
	if slot, found := t.buf.Lookup(id); found {
		t.mu.Lock()
		delete(t.manifestRequested, slot.Info().SamplePrefix)
		t.mu.Unlock()
		slot.Free()
	}
	t.buf.Evict(id)
}

// reassembleSlot rebuilds a sample's packet from a Ready slot's fetched
// segments.
func reassembleSlot(s *buffer.Slot) ([]byte, error) {
	total, parity := s.SegmentCounts()
	if total == 0 {
		return nil, fmt.Errorf("consumer: slot has no declared segment count")
	}

	dataSegs := make([]*wire.Segment, total)
	for i := uint32(0); i < total; i++ {
		if p, ok := s.Payload(buffer.SegmentKey{SegNo: uint64(i)}); ok {
			dataSegs[i] = &wire.Segment{Payload: p}
		}
	}
	paritySegs := make([]*wire.Segment, parity)
	for i := uint32(0); i < parity; i++ {
		if p, ok := s.Payload(buffer.SegmentKey{SegNo: uint64(i), IsParity: true}); ok {
			paritySegs[i] = &wire.Segment{Payload: p}
		}
	}
	return codec.Reassemble(dataSegs, paritySegs, 0)
}

// SegmentRequestTimeout forwards a per-interest timeout to the state
// machine, first falling back to the sample's parity segments when a
// data segment of a partially assembled slot is what timed out.
func (t *ThreadSession) SegmentRequestTimeout(info name.Info) {
	if info.SegmentType != name.SegmentTypeData {
		// Manifest and parity timeouts never drive the state machine; the
		// sample either completes from what did arrive or times out again
		// on a data segment.
		return
	}
	t.requestParityFallback(info)
	t.sm.Dispatch(statemachine.Event{Kind: statemachine.EventTimeout, SegmentInfo: info, IsVideo: t.cfg.IsVideo})
}

// requestParityFallback expresses interests for any parity segments of
// info's sample that have been neither fetched nor requested, enabling
// FEC recovery of a slot whose data segments are not all retrievable.
func (t *ThreadSession) requestParityFallback(info name.Info) {
	slotID := buffer.SlotID{Thread: t.cfg.Thread, Class: info.Class, SampleNo: info.SampleNo}
	slot, ok := t.buf.Lookup(slotID)
	if !ok || slot.GetState() != buffer.StateAssembling {
		return
	}
	_, parityTotal := slot.SegmentCounts()

	fetched := make(map[buffer.SegmentKey]struct{})
	for _, k := range slot.GetFetchedSegments() {
		fetched[k] = struct{}{}
	}
	var keys []buffer.SegmentKey
	for i := uint32(0); i < parityTotal; i++ {
		k := buffer.SegmentKey{SegNo: uint64(i), IsParity: true}
		if _, have := fetched[k]; have {
			continue
		}
		if slot.IsRequested(k) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return
	}
	t.buf.SegmentsRequested(slotID, info, keys)
	for _, k := range keys {
		_ = t.pipe.ExpressSegment(t.ctx, info.Class, info.SampleNo, name.SegmentTypeParity, k.SegNo)
	}
}

// SegmentStarvation escalates prolonged silence to the state machine,
// which performs the full reset and re-enters WaitForRightmost, and
// notifies the observable surface of a rebuffering event.
func (t *ThreadSession) SegmentStarvation() {
	if t.parent.metrics != nil {
		t.parent.metrics.RecordStarvation(t.cfg.Thread)
	}
	if t.parent.events != nil {
		_ = t.parent.events.PublishRebuffering(t.ctx, t.cfg.Thread)
	}
	appErr := apperrors.NewStarvation(name.ThreadPrefix(t.cfg.Base, t.cfg.Stream, t.cfg.Thread))
	t.parent.logger.Warn(appErr.Error(), zap.String("code", string(appErr.Code)))
	t.sm.Dispatch(statemachine.Event{Kind: statemachine.EventStarvation})
}

// --- statemachine.Actions ---

func (t *ThreadSession) RequestRightmost(class name.Class) {
	t.mu.Lock()
	t.sentAt[class] = time.Now()
	t.mu.Unlock()
	t.pipe.SetNeedRightmost()
	_ = t.pipe.Express(t.ctx, class, false)
}

func (t *ThreadSession) RequestExact(class name.Class, sampleNo uint64) {
	t.pipe.SetSequenceNumber(sampleNo, class)
	t.mu.Lock()
	t.sentAt[class] = time.Now()
	t.mu.Unlock()
	_ = t.pipe.Express(t.ctx, class, true)
}

func (t *ThreadSession) SetSisterSequenceNumber(class name.Class, sampleNo uint64) {
	t.pipe.SetSequenceNumber(sampleNo, class)
}

func (t *ThreadSession) IncrementWindow() { t.interestCtl.Increment() }

func (t *ThreadSession) AdvancePipeliner() {
	for _, c := range t.activeClasses() {
		if t.interestCtl.Room() > 0 {
			t.mu.Lock()
			t.sentAt[c] = time.Now()
			t.mu.Unlock()
			_ = t.pipe.Express(t.ctx, c, true)
		}
	}
}

func (t *ThreadSession) EnablePlayout() {
	t.playout.AllowPlayout(true)
}

func (t *ThreadSession) FreezeLowerLimit() {
	t.interestCtl.MarkLowerLimit(t.interestCtl.PipelineLimit())
}

// FullReset resets buffer, pipeliner window and latency control on
// starvation recovery.
func (t *ThreadSession) FullReset() {
	t.mu.Lock()
	t.slotByPlaybackNo = make(map[uint32]buffer.SlotID)
	t.manifestRequested = make(map[string]struct{})
	t.reachedWatermark = false
	t.mu.Unlock()
	t.buf.Reset()
	t.interestCtl.Reset()
	t.interestCtl.TargetRateUpdate(t.cfg.SampleRateHz)
	t.latencyCtl.Reset()
	t.latencyCtl.TargetRateUpdate(t.cfg.SampleRateHz)
	t.playout.AllowPlayout(false)
	t.playout.Reset()
}

// --- playback.Observer ---

// OnSkipHead records that the playout queue abandoned a missing head
// sample after its bounded wait.
func (t *ThreadSession) OnSkipHead(skippedPlaybackNo uint32) {
	if t.parent.metrics != nil {
		t.parent.metrics.RecordSkipHead(t.cfg.Thread)
	}
	t.parent.logger.Debug("playout skipped missing head",
		zap.String("thread", t.cfg.Thread), zap.Uint32("playback_no", skippedPlaybackNo))
}

// --- validator.Observer ---

// OnVerificationState forwards a sample's manifest-verification outcome
// to metrics and the observable surface.
func (t *ThreadSession) OnVerificationState(info name.Info, state validator.State, failReason string) {
	if t.parent.metrics != nil {
		t.parent.metrics.RecordVerification(t.cfg.Thread, state == validator.Verified)
	}
	if t.parent.events != nil {
		_ = t.parent.events.PublishVerificationResult(t.ctx, t.cfg.Thread, info.SamplePrefix, state.String(), failReason)
	}
	if state != validator.Verified {
		appErr := apperrors.NewVerificationFailed(info.SamplePrefix, failReason)
		t.parent.logger.Warn(appErr.Error(), zap.String("code", string(appErr.Code)), zap.String("thread", t.cfg.Thread))
	}
}

func (t *ThreadSession) OnStateChange(s statemachine.State) {
	if t.parent.events != nil {
		_ = t.parent.events.PublishStateUpdate(t.ctx, t.cfg.Thread, "", s.String())
	}
}

func (t *ThreadSession) activeClasses() []name.Class {
	if t.cfg.IsVideo {
		return []name.Class{name.ClassKey, name.ClassDelta}
	}
	return []name.Class{name.ClassDelta}
}
