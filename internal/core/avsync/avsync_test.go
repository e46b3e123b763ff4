package avsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializationHoldsUntilBothStreamsObserved(t *testing.T) {
	s := New(DefaultToleranceMs)
	_, ok := s.SynchronizePacket("audio", 100, 100, "video")
	require.False(t, ok, "no drift until the other stream has a sample")
}

func TestDriftComputationAndCorrectionConvergesToZero(t *testing.T) {
	s := New(DefaultToleranceMs)

	// video observes first, establishing the baseline pair.
	_, ok := s.SynchronizePacket("video", 1000, 1000, "audio")
	require.False(t, ok)

	// audio is running 50ms ahead of the video baseline.
	d, ok := s.SynchronizePacket("audio", 1000, 1050, "video")
	require.True(t, ok)
	require.InDelta(t, 50.0, d, 0.001)
	require.True(t, s.ShouldCorrect(d))

	// video ticks forward 33ms, unaware of audio's correction.
	_, ok = s.SynchronizePacket("video", 1033, 1033, "audio")
	require.True(t, ok)

	// audio applies the correction D to its next local playout time: it
	// would naturally report (1033, 1083) to preserve the 50ms gap, but
	// shifting local by +D erases the gap entirely.
	d2, ok := s.SynchronizePacket("audio", 1033+int64(d), 1083, "video")
	require.True(t, ok)
	require.InDelta(t, 0.0, d2, 0.001)
	require.False(t, s.ShouldCorrect(d2))
}

func TestResetClearsObservedState(t *testing.T) {
	s := New(DefaultToleranceMs)
	s.SynchronizePacket("audio", 0, 0, "video")
	s.Reset()
	_, ok := s.SynchronizePacket("video", 10, 10, "audio")
	require.False(t, ok)
}
