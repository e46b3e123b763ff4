package name

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	cases := []struct {
		segType SegmentType
		segNo   uint64
	}{
		{SegmentTypeData, 0},
		{SegmentTypeData, 7},
		{SegmentTypeParity, 1},
		{SegmentTypeManifest, 0},
	}
	for _, tc := range cases {
		n := Build("/ndn/edu", "camera", "hi", ClassKey, 42, tc.segType, tc.segNo)
		info, err := Parse(n)
		require.NoError(t, err, n)
		require.Equal(t, "camera", info.Stream)
		require.Equal(t, "hi", info.Thread)
		require.Equal(t, ClassKey, info.Class)
		require.EqualValues(t, 42, info.SampleNo)
		require.Equal(t, tc.segType, info.SegmentType)
		require.Equal(t, tc.segNo, info.SegNo)
		require.True(t, info.HasSegNo)
	}
}

func TestParsePrefixesAtEveryLevel(t *testing.T) {
	info, err := Parse("ndn/edu/camera/hi/d/3/0")
	require.NoError(t, err)
	require.Equal(t, "ndn/edu", info.BasePrefix)
	require.Equal(t, "ndn/edu/camera", info.StreamPrefix)
	require.Equal(t, "ndn/edu/camera/hi", info.ThreadPrefix)
	require.Equal(t, "ndn/edu/camera/hi/d/3", info.SamplePrefix)
}

func TestParseThreadMeta(t *testing.T) {
	info, err := Parse(BuildMeta("ndn/edu", "camera", "hi"))
	require.NoError(t, err)
	require.Equal(t, SegmentTypeMeta, info.SegmentType)
	require.Equal(t, "camera", info.Stream)
	require.Equal(t, "hi", info.Thread)
	require.False(t, info.HasSegNo)
}

func TestBuildMetaForStreamOmitsThread(t *testing.T) {
	require.Equal(t, "ndn/edu/camera/_meta", BuildMeta("ndn/edu", "camera", ""))
	require.Equal(t, "ndn/edu/camera/hi/_meta", BuildMeta("ndn/edu", "camera", "hi"))
}

func TestParseMalformed(t *testing.T) {
	for _, n := range []string{
		"",
		"too/short",
		"ndn/edu/camera/hi/x/3/0",        // bad class token
		"ndn/edu/camera/hi/d/notnum/0",   // non-numeric sampleNo
		"ndn/edu/camera/hi/d/3/junk/0",   // unknown segment type
		"ndn/edu/camera/hi/d/3//0",       // empty component
		"ndn/edu/camera/hi/d/3/0/8/9",    // trailing garbage
		"ndn/edu/camera/hi/d/3/parity/x", // non-numeric segNo
	} {
		_, err := Parse(n)
		require.Error(t, err, n)
		var me *MalformedNameError
		require.ErrorAs(t, err, &me, n)
	}
}

func TestClassTokens(t *testing.T) {
	require.Equal(t, "k", ClassKey.String())
	require.Equal(t, "d", ClassDelta.String())
}
