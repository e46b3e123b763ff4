// Package codec slices an encoded packet into wire segments, produces
// Reed-Solomon parity segments over them, and reassembles a packet from
// whatever subset of data/parity segments arrived.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"ndnrtc/internal/core/wire"
)

// DefaultParityRatio is the fraction of parity segments produced per data
// segment count when the caller does not override it.
const DefaultParityRatio = 0.2

// MalformedNameError-equivalent for codec failures: reassembly could not
// recover the original packet from the segments given.
type ReassemblyError struct {
	Have int
	Need int
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("codec: cannot reassemble, have %d usable segments, need %d", e.Have, e.Need)
}

// PayloadCapacity returns how many payload bytes fit in one segment given
// a wire length budget and header kind:
// slice(packet, wireLen) splits so each segment's wire encoding is <= wireLen.
func PayloadCapacity(wireLen int, kind wire.HeaderKind, isParity bool) int {
	cap := wireLen - wire.HeaderLen(kind, isParity)
	if cap < 1 {
		return 0
	}
	return cap
}

// NumSlices returns the number of data segments slicing dataLen bytes at
// the given wireLen budget would produce.
func NumSlices(dataLen int, wireLen int, kind wire.HeaderKind) int {
	capacity := PayloadCapacity(wireLen, kind, false)
	if capacity <= 0 {
		return 0
	}
	n := dataLen / capacity
	if dataLen%capacity != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

// SliceOptions configures how a packet is headered as it is sliced.
type SliceOptions struct {
	Kind   wire.HeaderKind
	Video  wire.VideoFrameSegmentHeader // base video header; TotalSegmentsNum/ParitySegmentsNum are filled in
	Common wire.CommonHeader
}

// Slice splits packet into segments so that each segment's wire encoding
// (header + payload) is <= wireLen. The last segment may be shorter.
// Segment count is ceil(len(packet) / payloadCapacity(wireLen)).
func Slice(packet []byte, wireLen int, opts SliceOptions) ([]wire.Segment, error) {
	capacity := PayloadCapacity(wireLen, opts.Kind, false)
	if capacity <= 0 {
		return nil, fmt.Errorf("codec: wireLen %d too small for header", wireLen)
	}

	n := NumSlices(len(packet), wireLen, opts.Kind)
	segments := make([]wire.Segment, 0, n)

	for i := 0; i < n; i++ {
		start := i * capacity
		end := start + capacity
		if end > len(packet) {
			end = len(packet)
		}
		payload := packet[start:end]

		seg := wire.Segment{Kind: opts.Kind, Payload: payload}
		switch opts.Kind {
		case wire.HeaderKindVideo:
			h := opts.Video
			h.TotalSegmentsNum = uint32(n)
			seg.Video = h
		case wire.HeaderKindCommon:
			seg.Common = opts.Common
		}
		segments = append(segments, seg)
	}

	if len(packet) == 0 {
		// Degenerate but valid: one empty segment, still round-trips.
		seg := wire.Segment{Kind: opts.Kind, Payload: nil}
		if opts.Kind == wire.HeaderKindVideo {
			h := opts.Video
			h.TotalSegmentsNum = 1
			seg.Video = h
		} else {
			seg.Common = opts.Common
		}
		segments = []wire.Segment{seg}
	}

	return segments, nil
}

// MakeParity produces ceil(ratio*N) Reed-Solomon parity segments over the
// data segments' payloads. Parity wire length matches data wire length:
// every payload is padded to the widest data payload before encoding.
// ratio <= 0 defaults to DefaultParityRatio.
func MakeParity(dataPayloads [][]byte, ratio float64) ([]wire.Segment, error) {
	if ratio <= 0 {
		ratio = DefaultParityRatio
	}
	n := len(dataPayloads)
	if n == 0 {
		return nil, nil
	}
	parityCount := int(ceil(float64(n) * ratio))
	if parityCount < 1 {
		parityCount = 1
	}

	maxLen := 0
	for _, p := range dataPayloads {
		if len(p) > maxLen {
			maxLen = len(p)
		}
	}

	shards := make([][]byte, n+parityCount)
	for i, p := range dataPayloads {
		padded := make([]byte, maxLen)
		copy(padded, p)
		shards[i] = padded
	}
	for i := n; i < n+parityCount; i++ {
		shards[i] = make([]byte, maxLen)
	}

	enc, err := reedsolomon.New(n, parityCount)
	if err != nil {
		return nil, fmt.Errorf("codec: reedsolomon.New: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("codec: rs encode: %w", err)
	}

	parity := make([]wire.Segment, parityCount)
	for i := 0; i < parityCount; i++ {
		parity[i] = wire.Segment{
			Kind:    wire.HeaderKindVideo,
			Payload: shards[n+i],
			Parity: &wire.ParityInfo{
				GroupSize: uint32(n),
				ParityIdx: uint32(i),
			},
		}
	}
	return parity, nil
}

func ceil(v float64) float64 {
	i := float64(int(v))
	if v > i {
		return i + 1
	}
	return i
}

// Reassemble reconstructs the original packet from data segments (some of
// which may be nil, meaning missing) and optional parity segments.
// Succeeds if all data segments are present, or if data+parity jointly
// satisfy the Reed-Solomon recovery threshold (present count >= N).
// packetLen is the exact original packet length, used to trim the
// zero-padding Reed-Solomon encoding introduces to the shard width (it is
// len(packet) at slice time). Pass 0 to skip trimming: a packet joined from
// all data segments carries no padding, but one recovered through parity
// then keeps the zero-padding of every shard.
func Reassemble(dataSegments []*wire.Segment, paritySegments []*wire.Segment, packetLen int) ([]byte, error) {
	n := len(dataSegments)
	if n == 0 {
		return nil, &ReassemblyError{Have: 0, Need: 1}
	}

	present := 0
	for _, s := range dataSegments {
		if s != nil {
			present++
		}
	}
	if present == n {
		out := make([]byte, 0)
		for _, s := range dataSegments {
			out = append(out, s.Payload...)
		}
		return out, nil
	}

	if len(paritySegments) == 0 {
		return nil, &ReassemblyError{Have: present, Need: n}
	}

	parityCount := len(paritySegments)
	maxLen := 0
	for _, s := range dataSegments {
		if s != nil && len(s.Payload) > maxLen {
			maxLen = len(s.Payload)
		}
	}
	for _, s := range paritySegments {
		if s != nil && len(s.Payload) > maxLen {
			maxLen = len(s.Payload)
		}
	}

	shards := make([][]byte, n+parityCount)
	for i, s := range dataSegments {
		if s != nil {
			padded := make([]byte, maxLen)
			copy(padded, s.Payload)
			shards[i] = padded
		}
	}
	for i, s := range paritySegments {
		if s != nil {
			padded := make([]byte, maxLen)
			copy(padded, s.Payload)
			shards[n+i] = padded
		}
	}

	have := 0
	for _, s := range shards {
		if s != nil {
			have++
		}
	}
	if have < n {
		return nil, &ReassemblyError{Have: have, Need: n}
	}

	enc, err := reedsolomon.New(n, parityCount)
	if err != nil {
		return nil, fmt.Errorf("codec: reedsolomon.New: %w", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("codec: rs reconstruct: %w", err)
	}

	out := make([]byte, 0, n*maxLen)
	for i := 0; i < n; i++ {
		out = append(out, shards[i]...)
	}
	if packetLen > 0 && packetLen <= len(out) {
		out = out[:packetLen]
	}
	return out, nil
}

// DigestLen is the length of one segment digest inside a manifest.
const DigestLen = 8

// SegmentDigest computes the content digest of one segment's payload for
// inclusion in the sample's manifest. FNV-1a keeps manifests compact;
// forgery resistance comes from the signature over the whole manifest,
// not from the digest itself.
func SegmentDigest(payload []byte) []byte {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range payload {
		h ^= uint64(b)
		h *= prime64
	}
	out := make([]byte, DigestLen)
	binary.LittleEndian.PutUint64(out, h)
	return out
}

// EncodeManifest frames a sample's manifest for publication: a u16
// signature length, the signature, then the concatenated segment
// digests the signature covers.
func EncodeManifest(digests [][]byte, signature []byte) []byte {
	body := make([]byte, 0, len(digests)*DigestLen)
	for _, d := range digests {
		body = append(body, d...)
	}
	out := make([]byte, 2, 2+len(signature)+len(body))
	binary.LittleEndian.PutUint16(out, uint16(len(signature)))
	out = append(out, signature...)
	out = append(out, body...)
	return out
}

// DecodeManifest splits a published manifest back into its signature and
// the signed digest body.
func DecodeManifest(b []byte) (body, signature []byte, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("codec: manifest too short: %d bytes", len(b))
	}
	sigLen := int(binary.LittleEndian.Uint16(b[:2]))
	if len(b) < 2+sigLen {
		return nil, nil, fmt.Errorf("codec: manifest signature length %d exceeds payload", sigLen)
	}
	signature = b[2 : 2+sigLen]
	body = b[2+sigLen:]
	if len(body)%DigestLen != 0 {
		return nil, nil, fmt.Errorf("codec: manifest body is not a whole number of digests")
	}
	return body, signature, nil
}
