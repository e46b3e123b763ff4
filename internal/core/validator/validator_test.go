package validator

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ndnrtc/internal/core/codec"
	"ndnrtc/internal/core/name"
)

// fakeSigner accepts exactly one signature value for any payload.
type fakeSigner struct {
	accepted []byte
}

func (f *fakeSigner) Sign(ctx context.Context, identity string, data []byte) ([]byte, error) {
	return f.accepted, nil
}

func (f *fakeSigner) VerifyData(ctx context.Context, data, signature []byte, identity string) (bool, string, error) {
	if bytes.Equal(signature, f.accepted) {
		return true, "", nil
	}
	return false, "signature mismatch", nil
}

type recordingObserver struct {
	states  []State
	reasons []string
}

func (r *recordingObserver) OnVerificationState(info name.Info, state State, failReason string) {
	r.states = append(r.states, state)
	r.reasons = append(r.reasons, failReason)
}

func sampleInfo(sampleNo uint64) name.Info {
	info, _ := name.Parse(name.Build("ndn/edu", "camera", "hi", name.ClassDelta, sampleNo, name.SegmentTypeData, 0))
	return info
}

func TestVerifyManifestDecidesOncePerSample(t *testing.T) {
	v := New(&fakeSigner{accepted: []byte("good")}, nil)
	obs := &recordingObserver{}
	v.Attach(obs)

	info := sampleInfo(3)
	v.VerifyManifest(context.Background(), info, []byte("digest-body"), []byte("good"), "id")
	v.VerifyManifest(context.Background(), info, []byte("digest-body"), []byte("good"), "id")

	require.Equal(t, []State{Verified}, obs.states)

	state, ok := v.StateFor(info)
	require.True(t, ok)
	require.Equal(t, Verified, state)
}

func TestVerifyManifestReportsFailure(t *testing.T) {
	v := New(&fakeSigner{accepted: []byte("good")}, nil)
	obs := &recordingObserver{}
	v.Attach(obs)

	info := sampleInfo(4)
	v.VerifyManifest(context.Background(), info, []byte("digest-body"), []byte("forged"), "id")

	require.Equal(t, []State{Failed}, obs.states)
	require.Equal(t, "signature mismatch", obs.reasons[0])
}

func TestCheckSegmentDigestAgainstManifest(t *testing.T) {
	v := New(&fakeSigner{accepted: []byte("good")}, nil)
	obs := &recordingObserver{}
	v.Attach(obs)

	listed := []byte("listed payload")
	body := codec.SegmentDigest(listed)

	info := sampleInfo(5)
	// Segment ahead of its manifest always passes.
	require.True(t, v.CheckSegmentDigest(info, listed))

	v.VerifyManifest(context.Background(), info, body, []byte("good"), "id")
	require.True(t, v.CheckSegmentDigest(info, listed))
	require.False(t, v.CheckSegmentDigest(info, []byte("tampered payload")))

	state, ok := v.StateFor(info)
	require.True(t, ok)
	require.Equal(t, Failed, state)
}

func TestResetForgetsDecisions(t *testing.T) {
	v := New(&fakeSigner{accepted: []byte("good")}, nil)
	info := sampleInfo(6)
	v.VerifyManifest(context.Background(), info, nil, []byte("good"), "id")

	v.Reset()
	_, ok := v.StateFor(info)
	require.False(t, ok)
}
