// Package producer converts a live sequence of raw frames into signed,
// named, cached data packets ready for on-demand retrieval. Threads are
// independent named encoding variants of the same source; the producer
// publishes all of them and leaves tier selection to the consumer.
package producer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ndnrtc/internal/core/codec"
	"ndnrtc/internal/core/estimators"
	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/wire"
	"ndnrtc/pkg/tracing"
	"ndnrtc/pkg/validation"
)

// KeyFramePolicy selects when a thread forces a key frame.
type KeyFramePolicy int

const (
	// PolicyGop forces a key frame every GopSize frames.
	PolicyGop KeyFramePolicy = iota
	// PolicyTimed forces a key frame if the next one is overdue by
	// wall-clock (KeyInterval).
	PolicyTimed
)

// ThreadParams configures one encoding ladder rung.
type ThreadParams struct {
	Name         string
	SampleRateHz float64 // frames (or audio bundles) per second
	WireLen      int     // max wire length per segment, header included
	ParityRatio  float64 // 0 selects codec.DefaultParityRatio
	Policy       KeyFramePolicy
	GopSize      int           // used when Policy == PolicyGop
	KeyInterval  time.Duration // used when Policy == PolicyTimed

	MetaFreshnessMs  int
	DeltaFreshnessMs int
	KeyFreshnessMs   int
}

// Freshness bundles the three independent freshness values a stream
// publishes with: metadata, delta samples, key samples.
type Freshness struct {
	MetaMs, DeltaMs, KeyMs int
}

// ContentCache is the collaborator segments, manifests, and meta are
// inserted into, keyed by full name.
type ContentCache interface {
	Put(name string, payload []byte, freshnessMs int)
	Get(name string) ([]byte, bool)
}

// MetaVersion is a per-thread meta publication, versioned
// monotonically so consumers can detect changes.
type MetaVersion struct {
	Version uint64
	Codec   string
	Width   int
	Height  int
	FpsHz   float64
}

// Observer is notified of producer-side lifecycle events relevant to
// consumers and operators.
type Observer interface {
	OnFrameDropped(thread string)
	OnNewMeta(thread string, mv MetaVersion)
	OnSignFailure(thread string, sampleNo uint64, err error)
}

type thread struct {
	params ThreadParams

	mu             sync.Mutex
	seqNo          map[name.Class]uint64
	framesSince    int
	lastKeyAt      time.Time
	hasLastKey     bool
	lastKeySeqNo   uint64 // pairedSequenceNo stamped on this GOP's deltas
	metaVersion    uint64
	lastMeta       MetaVersion
	hasMeta        bool
	sizeEstimators map[name.Class]*estimators.Average // moving average of encoded sample size
}

// Stream is one published NDN stream: a named source publishing one or
// more encoding threads.
type Stream struct {
	mu sync.Mutex

	base, stream string
	face         ports.NetworkFace
	codecImpl    ports.Codec
	signer       ports.Signer
	cache        ContentCache
	identity     string
	freshness    Freshness
	logger       *zap.Logger

	threads map[string]*thread

	observers         []Observer
	playbackNo        uint32
	streamMetaVersion uint64

	nowFunc   func() time.Time
	startedAt time.Time
}

// New creates a Stream publishing under base/stream.
func New(base, stream string, face ports.NetworkFace, codecImpl ports.Codec, signer ports.Signer, cache ContentCache, identity string, freshness Freshness, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		base: base, stream: stream,
		face: face, codecImpl: codecImpl, signer: signer, cache: cache,
		identity: identity, freshness: freshness, logger: logger,
		threads:   make(map[string]*thread),
		nowFunc:   time.Now,
		startedAt: time.Now(),
	}
}

// Register announces the stream prefix to the network face, answering
// Interests under <base>/<stream> from the content cache. A loopback
// face resolves against the shared store directly and treats this as a
// no-op; a forwarder-backed face needs it to route Interests here.
func (s *Stream) Register(ctx context.Context) error {
	if s.face == nil {
		return nil
	}
	prefix := name.ThreadPrefix(s.base, s.stream, "")
	return s.face.RegisterPrefix(ctx, prefix, func(interestName string, sel ports.Selectors) {
		if s.cache == nil {
			return
		}
		payload, ok := s.cache.Get(interestName)
		if !ok {
			return
		}
		_ = s.face.PutData(ctx, interestName, wire.Segment{Payload: payload})
	})
}

// Attach registers o for producer lifecycle notifications.
func (s *Stream) Attach(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddThread registers a new independent encoding ladder rung. Thread
// names must be unique within the stream.
func (s *Stream) AddThread(params ThreadParams) error {
	if err := validation.ValidateThreadName(params.Name); err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	if err := validation.ValidateParityRatio(params.ParityRatio); err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[params.Name]; exists {
		return fmt.Errorf("producer: thread %q already exists", params.Name)
	}
	if params.ParityRatio == 0 {
		params.ParityRatio = codec.DefaultParityRatio
	}
	s.threads[params.Name] = &thread{
		params: params,
		seqNo:  make(map[name.Class]uint64),
		sizeEstimators: map[name.Class]*estimators.Average{
			name.ClassKey:   estimators.NewAverage(estimators.NewSampleWindow(50)),
			name.ClassDelta: estimators.NewAverage(estimators.NewSampleWindow(50)),
		},
	}
	s.publishStreamMetaLocked()
	return nil
}

// RemoveThread unregisters a thread; subsequent frames are not
// published to it.
func (s *Stream) RemoveThread(threadName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadName)
	s.publishStreamMetaLocked()
}

// publishStreamMetaLocked republishes the stream-level meta (the live
// thread list) under <stream>/_meta. Versioned by the same monotonic
// rule as thread meta. Caller holds s.mu.
func (s *Stream) publishStreamMetaLocked() {
	if s.cache == nil {
		return
	}
	s.streamMetaVersion++
	names := make([]string, 0, len(s.threads))
	for n := range s.threads {
		names = append(names, n)
	}
	sort.Strings(names)
	payload := fmt.Sprintf("v=%d;threads=%s", s.streamMetaVersion, strings.Join(names, ","))
	s.cache.Put(name.BuildMeta(s.base, s.stream, ""), []byte(payload), s.freshness.MetaMs)
}

func (s *Stream) threadNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.threads))
	for n := range s.threads {
		names = append(names, n)
	}
	return names
}

// OnRawFrame feeds the capture pipeline: encodes img on every registered
// thread and publishes the result. Returns the assigned playback number,
// or -1 if the frame was dropped on every thread.
func (s *Stream) OnRawFrame(ctx context.Context, img ports.RawImage) int64 {
	s.mu.Lock()
	pbNo := s.playbackNo
	s.playbackNo++
	s.mu.Unlock()

	published := false
	for _, tn := range s.threadNames() {
		if s.publishToThread(ctx, tn, img, pbNo) {
			published = true
		}
	}
	if !published {
		return -1
	}
	return int64(pbNo)
}

func (s *Stream) getThread(name string) *thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[name]
}

func (s *Stream) publishToThread(ctx context.Context, threadName string, img ports.RawImage, playbackNo uint32) bool {
	th := s.getThread(threadName)
	if th == nil {
		return false
	}

	th.mu.Lock()
	forceKey := s.shouldForceKeyLocked(th)
	th.mu.Unlock()

	frame, err := s.codecImpl.Encode(ctx, img, forceKey)
	if err != nil || frame.Dropped {
		s.notifyDropped(threadName)
		return false
	}

	class := name.ClassDelta
	if frame.Kind == ports.FrameKey {
		class = name.ClassKey
	}

	th.mu.Lock()
	sampleNo := th.seqNo[class]
	th.seqNo[class] = sampleNo + 1
	var pairedSeqNo uint64
	if class == name.ClassKey {
		th.framesSince = 0
		th.lastKeyAt = s.now()
		th.hasLastKey = true
		th.lastKeySeqNo = sampleNo
		// A key sample's pairedSequenceNo names the first delta of its
		// GOP, which is the delta counter's current value.
		pairedSeqNo = th.seqNo[name.ClassDelta]
	} else {
		th.framesSince++
		// A delta sample's pairedSequenceNo names the key sample that
		// precedes it within the same GOP.
		pairedSeqNo = th.lastKeySeqNo
	}
	sizeEst := th.sizeEstimators[class]
	th.mu.Unlock()

	if sizeEst != nil {
		sizeEst.NewValue(float64(len(frame.Payload)))
	}

	videoHeader := wire.VideoFrameSegmentHeader{
		PairedSequenceNo: uint32(pairedSeqNo),
		PlaybackNo:       uint32(playbackNo),
	}

	// The packet carries a common header ahead of the encoded bytes;
	// consumers read it back only after the sample is fully reassembled.
	now := s.now()
	packet := wire.Encode(wire.Segment{
		Kind: wire.HeaderKindCommon,
		Common: wire.CommonHeader{
			SampleRate:             th.params.SampleRateHz,
			PublishTimestampMs:     uint64(now.Sub(s.startedAt).Milliseconds()),
			PublishUnixTimestampMs: uint64(now.UnixMilli()),
		},
		Payload: frame.Payload,
	})

	segs, err := codec.Slice(packet, th.params.WireLen, codec.SliceOptions{
		Kind:  wire.HeaderKindVideo,
		Video: videoHeader,
	})
	if err != nil {
		s.logger.Debug("slice failed", zap.String("thread", threadName), zap.Error(err))
		s.notifyDropped(threadName)
		return false
	}

	var parity []wire.Segment
	if th.params.ParityRatio > 0 {
		payloads := make([][]byte, len(segs))
		for i, sg := range segs {
			payloads[i] = sg.Payload
		}
		parity, err = codec.MakeParity(payloads, th.params.ParityRatio)
		if err != nil {
			s.logger.Debug("parity failed", zap.String("thread", threadName), zap.Error(err))
			parity = nil
		}
	}

	for i := range segs {
		segs[i].Video.TotalSegmentsNum = uint32(len(segs))
		segs[i].Video.ParitySegmentsNum = uint32(len(parity))
	}
	for i := range parity {
		parity[i].Video.PairedSequenceNo = videoHeader.PairedSequenceNo
		parity[i].Video.PlaybackNo = videoHeader.PlaybackNo
		parity[i].Video.TotalSegmentsNum = uint32(len(segs))
		parity[i].Video.ParitySegmentsNum = uint32(len(parity))
	}

	digests := make([][]byte, 0, len(segs)+len(parity))
	for _, sg := range segs {
		digests = append(digests, codec.SegmentDigest(sg.Payload))
	}
	for _, sg := range parity {
		digests = append(digests, codec.SegmentDigest(sg.Payload))
	}
	manifestBody := make([]byte, 0, len(digests)*codec.DigestLen)
	for _, d := range digests {
		manifestBody = append(manifestBody, d...)
	}

	var signature []byte
	if s.signer != nil {
		signCtx, span := tracing.TraceSign(ctx, threadName, sampleNo)
		signature, err = s.signer.Sign(signCtx, s.identity, manifestBody)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if err != nil {
			s.notifySignFailure(threadName, sampleNo, err)
			return false
		}
	}

	freshnessMs := s.freshness.DeltaMs
	if class == name.ClassKey {
		freshnessMs = s.freshness.KeyMs
	}
	if s.cache != nil {
		for i, sg := range segs {
			n := name.Build(s.base, s.stream, threadName, class, sampleNo, name.SegmentTypeData, uint64(i))
			s.cache.Put(n, wire.Encode(sg), freshnessMs)
		}
		for i, sg := range parity {
			n := name.Build(s.base, s.stream, threadName, class, sampleNo, name.SegmentTypeParity, uint64(i))
			s.cache.Put(n, wire.Encode(sg), freshnessMs)
		}
		manifestName := name.Build(s.base, s.stream, threadName, class, sampleNo, name.SegmentTypeManifest, 0)
		s.cache.Put(manifestName, codec.EncodeManifest(digests, signature), freshnessMs)
	}

	s.maybePublishMeta(threadName, th, frame)
	return true
}

func (s *Stream) shouldForceKeyLocked(th *thread) bool {
	if !th.hasLastKey {
		return true
	}
	switch th.params.Policy {
	case PolicyGop:
		return th.params.GopSize > 0 && th.framesSince >= th.params.GopSize
	case PolicyTimed:
		return th.params.KeyInterval > 0 && s.now().Sub(th.lastKeyAt) >= th.params.KeyInterval
	default:
		return false
	}
}

func (s *Stream) maybePublishMeta(threadName string, th *thread, frame ports.EncodedFrame) {
	th.mu.Lock()
	changed := !th.hasMeta || th.lastMeta.Width != frame.Width || th.lastMeta.Height != frame.Height
	if changed {
		th.metaVersion++
		th.lastMeta = MetaVersion{
			Version: th.metaVersion,
			Width:   frame.Width,
			Height:  frame.Height,
			FpsHz:   th.params.SampleRateHz,
		}
		th.hasMeta = true
	}
	mv := th.lastMeta
	th.mu.Unlock()

	if !changed {
		return
	}

	if s.cache != nil {
		metaName := name.BuildMeta(s.base, s.stream, threadName)
		s.cache.Put(metaName, encodeMeta(mv), s.freshness.MetaMs)
	}

	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.OnNewMeta(threadName, mv)
	}
}

func (s *Stream) notifyDropped(threadName string) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.OnFrameDropped(threadName)
	}
}

func (s *Stream) notifySignFailure(threadName string, sampleNo uint64, err error) {
	s.logger.Debug("sign failed", zap.String("thread", threadName), zap.Uint64("sampleNo", sampleNo), zap.Error(err))
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.OnSignFailure(threadName, sampleNo, err)
	}
}

func (s *Stream) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}

func encodeMeta(mv MetaVersion) []byte {
	return []byte(fmt.Sprintf("v=%d;w=%d;h=%d;fps=%f", mv.Version, mv.Width, mv.Height, mv.FpsHz))
}
