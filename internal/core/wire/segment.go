// Package wire implements the bit-exact segment wire layout: a one-byte version, a little-endian header length, a fixed
// header (either a VideoFrameSegmentHeader or a CommonHeader), and an
// opaque payload.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Version is the current wire format version.
const Version uint8 = 1

// CommonHeader carries per-sample metadata shared by every segment of the
// sample, independent of class.
type CommonHeader struct {
	SampleRate             float64
	PublishTimestampMs     uint64 // monotonic
	PublishUnixTimestampMs uint64 // wall-clock
}

const commonHeaderLen = 8 + 8 + 8

func (h CommonHeader) encode() []byte {
	buf := make([]byte, commonHeaderLen)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(h.SampleRate))
	binary.LittleEndian.PutUint64(buf[8:16], h.PublishTimestampMs)
	binary.LittleEndian.PutUint64(buf[16:24], h.PublishUnixTimestampMs)
	return buf
}

func decodeCommonHeader(b []byte) (CommonHeader, error) {
	if len(b) < commonHeaderLen {
		return CommonHeader{}, fmt.Errorf("wire: short common header: %d bytes", len(b))
	}
	return CommonHeader{
		SampleRate:             math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])),
		PublishTimestampMs:     binary.LittleEndian.Uint64(b[8:16]),
		PublishUnixTimestampMs: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// VideoFrameSegmentHeader is the fixed per-segment header. Field order
// on the wire is exactly as listed here.
type VideoFrameSegmentHeader struct {
	InterestNonce     uint32
	InterestArrivalMs uint64
	GenerationDelayMs uint32
	TotalSegmentsNum  uint32
	PlaybackNo        uint32
	PairedSequenceNo  uint32
	ParitySegmentsNum uint32
}

const videoHeaderLen = 4 + 8 + 4 + 4 + 4 + 4 + 4

func (h VideoFrameSegmentHeader) encode() []byte {
	buf := make([]byte, videoHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.InterestNonce)
	binary.LittleEndian.PutUint64(buf[4:12], h.InterestArrivalMs)
	binary.LittleEndian.PutUint32(buf[12:16], h.GenerationDelayMs)
	binary.LittleEndian.PutUint32(buf[16:20], h.TotalSegmentsNum)
	binary.LittleEndian.PutUint32(buf[20:24], h.PlaybackNo)
	binary.LittleEndian.PutUint32(buf[24:28], h.PairedSequenceNo)
	binary.LittleEndian.PutUint32(buf[28:32], h.ParitySegmentsNum)
	return buf
}

func decodeVideoHeader(b []byte) (VideoFrameSegmentHeader, error) {
	if len(b) < videoHeaderLen {
		return VideoFrameSegmentHeader{}, fmt.Errorf("wire: short video segment header: %d bytes", len(b))
	}
	return VideoFrameSegmentHeader{
		InterestNonce:     binary.LittleEndian.Uint32(b[0:4]),
		InterestArrivalMs: binary.LittleEndian.Uint64(b[4:12]),
		GenerationDelayMs: binary.LittleEndian.Uint32(b[12:16]),
		TotalSegmentsNum:  binary.LittleEndian.Uint32(b[16:20]),
		PlaybackNo:        binary.LittleEndian.Uint32(b[20:24]),
		PairedSequenceNo:  binary.LittleEndian.Uint32(b[24:28]),
		ParitySegmentsNum: binary.LittleEndian.Uint32(b[28:32]),
	}, nil
}

// ParityInfo is the extra FEC metadata a parity segment carries,
// identifying its protection group.
type ParityInfo struct {
	GroupSize uint32 // number of data segments protected
	ParityIdx uint32 // this parity segment's index within the group
}

// HeaderKind selects which concrete header a Segment carries.
type HeaderKind uint8

const (
	HeaderKindVideo HeaderKind = iota
	HeaderKindCommon
)

// Segment is the decoded form of one wire segment: header plus payload.
type Segment struct {
	Kind    HeaderKind
	Video   VideoFrameSegmentHeader
	Common  CommonHeader
	Parity  *ParityInfo
	Payload []byte
}

// Encode serializes a segment to its wire form: version, header length,
// header bytes, payload.
func Encode(s Segment) []byte {
	var hdr []byte
	switch s.Kind {
	case HeaderKindVideo:
		hdr = s.Video.encode()
	case HeaderKindCommon:
		hdr = s.Common.encode()
	}
	if s.Parity != nil {
		parityBuf := make([]byte, 8)
		binary.LittleEndian.PutUint32(parityBuf[0:4], s.Parity.GroupSize)
		binary.LittleEndian.PutUint32(parityBuf[4:8], s.Parity.ParityIdx)
		hdr = append(hdr, parityBuf...)
	}

	out := bytes.NewBuffer(make([]byte, 0, 3+len(hdr)+len(s.Payload)))
	out.WriteByte(Version)
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(hdr)))
	out.Write(lenBuf)
	out.Write(hdr)
	out.Write(s.Payload)
	return out.Bytes()
}

// Decode parses wire bytes into a Segment. kind tells Decode which header
// shape to expect; isParity indicates the trailing 8-byte ParityInfo is
// present.
func Decode(b []byte, kind HeaderKind, isParity bool) (Segment, error) {
	if len(b) < 3 {
		return Segment{}, fmt.Errorf("wire: segment too short: %d bytes", len(b))
	}
	version := b[0]
	if version != Version {
		return Segment{}, fmt.Errorf("wire: unsupported version %d", version)
	}
	hlen := int(binary.LittleEndian.Uint16(b[1:3]))
	if len(b) < 3+hlen {
		return Segment{}, fmt.Errorf("wire: header length %d exceeds segment size %d", hlen, len(b))
	}
	hdr := b[3 : 3+hlen]
	payload := b[3+hlen:]

	seg := Segment{Kind: kind, Payload: payload}

	parityLen := 0
	if isParity {
		parityLen = 8
	}
	fixedLen := hlen - parityLen
	if fixedLen < 0 {
		return Segment{}, fmt.Errorf("wire: header too short for parity info")
	}

	switch kind {
	case HeaderKindVideo:
		vh, err := decodeVideoHeader(hdr[:fixedLen])
		if err != nil {
			return Segment{}, err
		}
		seg.Video = vh
	case HeaderKindCommon:
		ch, err := decodeCommonHeader(hdr[:fixedLen])
		if err != nil {
			return Segment{}, err
		}
		seg.Common = ch
	}

	if isParity {
		p := hdr[fixedLen:]
		if len(p) < 8 {
			return Segment{}, fmt.Errorf("wire: short parity info")
		}
		seg.Parity = &ParityInfo{
			GroupSize: binary.LittleEndian.Uint32(p[0:4]),
			ParityIdx: binary.LittleEndian.Uint32(p[4:8]),
		}
	}

	return seg, nil
}

// HeaderLen returns the encoded length of the fixed header for kind,
// including parity metadata if requested. Used by codec.Slice to compute
// payload capacity for a given wire length budget.
func HeaderLen(kind HeaderKind, isParity bool) int {
	const wireFraming = 3 // version + u16 length
	var l int
	switch kind {
	case HeaderKindVideo:
		l = videoHeaderLen
	case HeaderKindCommon:
		l = commonHeaderLen
	}
	if isParity {
		l += 8
	}
	return wireFraming + l
}
