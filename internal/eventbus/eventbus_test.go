package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeneratesSessionIDWhenEmpty(t *testing.T) {
	b := New(nil, "", "ndnrtc:events", nil)
	require.NotEmpty(t, b.SessionID())
}

func TestNewKeepsProvidedSessionID(t *testing.T) {
	b := New(nil, "fixed-session", "ndnrtc:events", nil)
	require.Equal(t, "fixed-session", b.SessionID())
}

func TestStateUpdatePayloadRoundTrips(t *testing.T) {
	p := StateUpdatePayload{From: "Chasing", To: "Adjusting"}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded StateUpdatePayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, p, decoded)
}

func TestNewMetaPayloadRoundTrips(t *testing.T) {
	p := NewMetaPayload{Version: 3, Codec: "h264", Width: 1280, Height: 720, FpsHz: 30}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded NewMetaPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, p, decoded)
}

func TestVerificationResultPayloadRoundTrips(t *testing.T) {
	p := VerificationResultPayload{SamplePrefix: "/ndn/rtc/s1/hi/k/3", State: "Failed", FailReason: "bad signature"}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded VerificationResultPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, p, decoded)
}
