// Package validator verifies incoming segments against a signer
// collaborator and reports per-segment VerificationState to observers.
// The discipline is manifest-covers-segments: one signature on the
// manifest, per-segment digests checked against it.
package validator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ndnrtc/internal/core/codec"
	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/ports"
)

// State mirrors the VerificationState observable event.
type State int

const (
	// Unverified is the state a stream reports for a sample that has not
	// yet had its manifest signature checked.
	Unverified State = iota
	Verified
	Failed
)

func (s State) String() string {
	switch s {
	case Verified:
		return "Verified"
	case Failed:
		return "Failed"
	default:
		return "Unverified"
	}
}

// Observer is notified when a sample's verification state changes. The
// stream continues fetching regardless of the outcome;
// this is purely an observable report.
type Observer interface {
	OnVerificationState(info name.Info, state State, failReason string)
}

// Validator checks each sample's manifest signature once, via the
// signer collaborator, the first time that sample's manifest is passed to
// VerifyManifest. One manifest signature covers every segment in
// the sample, so a sample transitions
// Unverified -> {Verified, Failed} exactly once.
type Validator struct {
	mu     sync.Mutex
	signer ports.Signer
	logger *zap.Logger

	observers []Observer
	decided   map[string]State               // key: sample prefix
	digests   map[string]map[string]struct{} // key: sample prefix -> digest set
}

// New creates a Validator that checks signatures via signer.
func New(signer ports.Signer, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		signer:  signer,
		logger:  logger,
		decided: make(map[string]State),
		digests: make(map[string]map[string]struct{}),
	}
}

// Attach registers o for verification-state notifications.
func (v *Validator) Attach(o Observer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.observers = append(v.observers, o)
}

// VerifyManifest validates manifestData (the manifest segment's raw
// payload) against signature under identity, and reports the resulting
// VerificationState for the sample named by info. Idempotent per
// sample: a second call for the same sample is a no-op.
func (v *Validator) VerifyManifest(ctx context.Context, info name.Info, manifestData, signature []byte, identity string) {
	key := info.SamplePrefix

	v.mu.Lock()
	if _, done := v.decided[key]; done {
		v.mu.Unlock()
		return
	}
	set := make(map[string]struct{}, len(manifestData)/codec.DigestLen)
	for off := 0; off+codec.DigestLen <= len(manifestData); off += codec.DigestLen {
		set[string(manifestData[off:off+codec.DigestLen])] = struct{}{}
	}
	v.digests[key] = set
	observers := append([]Observer(nil), v.observers...)
	signer := v.signer
	v.mu.Unlock()

	if signer == nil {
		v.record(key, info, Unverified, "", observers)
		return
	}

	ok, reason, err := signer.VerifyData(ctx, manifestData, signature, identity)
	if err != nil {
		v.logger.Debug("verification error", zap.String("sample", key), zap.Error(err))
		v.record(key, info, Failed, err.Error(), observers)
		return
	}
	if ok {
		v.record(key, info, Verified, "", observers)
	} else {
		v.record(key, info, Failed, reason, observers)
	}
}

func (v *Validator) record(key string, info name.Info, state State, reason string, observers []Observer) {
	v.mu.Lock()
	v.decided[key] = state
	v.mu.Unlock()

	v.logger.Debug("verification state",
		zap.String("sample", key), zap.String("state", state.String()), zap.String("reason", reason))

	for _, o := range observers {
		o.OnVerificationState(info, state, reason)
	}
}

// CheckSegmentDigest verifies that an arrived segment payload is covered
// by its sample's manifest. Returns false, and demotes the sample to
// Failed, only when the manifest is already known and does not list the
// payload's digest; a segment arriving ahead of its manifest passes.
func (v *Validator) CheckSegmentDigest(info name.Info, payload []byte) bool {
	key := info.SamplePrefix

	v.mu.Lock()
	set, known := v.digests[key]
	if !known {
		v.mu.Unlock()
		return true
	}
	_, listed := set[string(codec.SegmentDigest(payload))]
	observers := append([]Observer(nil), v.observers...)
	v.mu.Unlock()

	if listed {
		return true
	}
	v.record(key, info, Failed, "segment digest not in manifest", observers)
	return false
}

// StateFor returns the decided state for a sample, if any.
func (v *Validator) StateFor(info name.Info) (State, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.decided[info.SamplePrefix]
	return s, ok
}

// Reset clears all recorded verification decisions.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.decided = make(map[string]State)
	v.digests = make(map[string]map[string]struct{})
}
