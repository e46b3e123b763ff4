package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutAndGetRoundTrips(t *testing.T) {
	s := New(time.Second)
	defer s.Stop()

	s.Put("/ndn/rtc/s1/hi/k/0/0", []byte("segment"), 0)
	payload, ok := s.Get("/ndn/rtc/s1/hi/k/0/0")
	require.True(t, ok)
	require.Equal(t, []byte("segment"), payload)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := New(time.Second)
	defer s.Stop()

	_, ok := s.Get("/nonexistent")
	require.False(t, ok)
}

func TestPutRespectsExplicitFreshness(t *testing.T) {
	s := New(time.Hour)
	defer s.Stop()

	s.Put("/ndn/rtc/s1/hi/k/0/0", []byte("segment"), 10)
	time.Sleep(30 * time.Millisecond)

	_, ok := s.Get("/ndn/rtc/s1/hi/k/0/0")
	require.False(t, ok, "entry should have expired per its explicit freshness")
}

func TestEvictRemovesEntryImmediately(t *testing.T) {
	s := New(time.Hour)
	defer s.Stop()

	s.Put("/ndn/rtc/s1/hi/k/0/0", []byte("segment"), 0)
	s.Evict("/ndn/rtc/s1/hi/k/0/0")

	_, ok := s.Get("/ndn/rtc/s1/hi/k/0/0")
	require.False(t, ok)
}
