// Package name parses and builds the hierarchical NDN names this engine
// publishes and fetches under:
//
//	<base>/<stream>/<thread>/<class>/<sampleNo>/<segmentType>/<segNo>
package name

import (
	"fmt"
	"strconv"
	"strings"
)

// Class distinguishes key frames (full GOP anchor) from delta frames.
type Class int

const (
	ClassInvalid Class = iota
	ClassKey
	ClassDelta
)

func (c Class) String() string {
	switch c {
	case ClassKey:
		return "k"
	case ClassDelta:
		return "d"
	default:
		return "invalid"
	}
}

func parseClass(s string) (Class, bool) {
	switch s {
	case "k":
		return ClassKey, true
	case "d":
		return ClassDelta, true
	default:
		return ClassInvalid, false
	}
}

// SegmentType distinguishes the four kinds of segment a sample may carry.
type SegmentType int

const (
	SegmentTypeData SegmentType = iota // implicit: no literal component
	SegmentTypeParity
	SegmentTypeManifest
	SegmentTypeMeta
)

func (t SegmentType) literal() string {
	switch t {
	case SegmentTypeParity:
		return "parity"
	case SegmentTypeManifest:
		return "_manifest"
	case SegmentTypeMeta:
		return "_meta"
	default:
		return ""
	}
}

// APIVersion is the integer component appended under the "ndnrtc" app
// name.
const APIVersion = 1

// MalformedNameError reports a name that does not follow the
// <base>/<stream>/<thread>/<class>/<sampleNo>/... structure.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed name %q: %s", e.Name, e.Reason)
}

// Info is the parsed structure of a full segment name, along with the
// prefix at every level so callers can address a stream, a thread, or a
// sample without re-joining components.
type Info struct {
	BasePrefix   string // <base>
	StreamPrefix string // <base>/<stream>
	ThreadPrefix string // <base>/<stream>/<thread>
	SamplePrefix string //.../<class>/<sampleNo>

	Stream      string
	Thread      string
	Class       Class
	SampleNo    uint64
	SegmentType SegmentType
	SegNo       uint64
	HasSegNo    bool // false for _meta and _manifest-only addresses
}

// Parse splits name into its structural components. name is a "/"-joined
// path; components must be non-empty. Returns MalformedNameError if the
// name's structure is violated.
func Parse(rawName string) (Info, error) {
	trimmed := strings.Trim(rawName, "/")
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return Info{}, &MalformedNameError{Name: rawName, Reason: "empty component"}
		}
	}

	// Walk from the right: <segNo>?/<segmentType>?/<sampleNo>/<class>/<thread>/<stream>/<base...>
	// Meta addresses are: <base>/<stream>/_meta or <base>/<stream>/<thread>/_meta
	if len(parts) >= 3 && parts[len(parts)-1] == "_meta" {
		threadOrStream := parts[:len(parts)-1]
		if len(threadOrStream) < 2 {
			return Info{}, &MalformedNameError{Name: rawName, Reason: "meta name too short"}
		}
		stream := threadOrStream[len(threadOrStream)-2]
		base := strings.Join(threadOrStream[:len(threadOrStream)-2], "/")
		info := Info{
			BasePrefix:   base,
			StreamPrefix: joinNonEmpty(base, stream),
			Stream:       stream,
			SegmentType:  SegmentTypeMeta,
		}
		if len(threadOrStream) >= 3 {
			thread := threadOrStream[len(threadOrStream)-1]
			info.Thread = thread
			info.ThreadPrefix = joinNonEmpty(info.StreamPrefix, thread)
		}
		return info, nil
	}

	if len(parts) < 5 {
		return Info{}, &MalformedNameError{Name: rawName, Reason: "fewer than 5 components"}
	}

	classIdx := -1
	for i, p := range parts {
		if _, ok := parseClass(p); ok {
			classIdx = i
		}
	}
	if classIdx < 0 || classIdx+1 >= len(parts) {
		return Info{}, &MalformedNameError{Name: rawName, Reason: "missing class component"}
	}
	if classIdx < 2 {
		return Info{}, &MalformedNameError{Name: rawName, Reason: "missing stream/thread prefix"}
	}

	class, _ := parseClass(parts[classIdx])
	sampleNo, err := strconv.ParseUint(parts[classIdx+1], 10, 64)
	if err != nil {
		return Info{}, &MalformedNameError{Name: rawName, Reason: "non-numeric sampleNo: " + err.Error()}
	}

	thread := parts[classIdx-1]
	stream := parts[classIdx-2]
	base := strings.Join(parts[:classIdx-2], "/")

	info := Info{
		BasePrefix:   base,
		StreamPrefix: joinNonEmpty(base, stream),
		ThreadPrefix: joinNonEmpty(joinNonEmpty(base, stream), thread),
		Stream:       stream,
		Thread:       thread,
		Class:        class,
		SampleNo:     sampleNo,
	}
	info.SamplePrefix = joinNonEmpty(info.ThreadPrefix, fmt.Sprintf("%s/%d", class, sampleNo))

	rest := parts[classIdx+2:]
	switch len(rest) {
	case 0:
		info.SegmentType = SegmentTypeData
		return info, &MalformedNameError{Name: rawName, Reason: "missing segNo"}
	case 1:
		segNo, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return Info{}, &MalformedNameError{Name: rawName, Reason: "non-numeric segNo: " + err.Error()}
		}
		info.SegmentType = SegmentTypeData
		info.SegNo = segNo
		info.HasSegNo = true
	case 2:
		switch rest[0] {
		case "parity":
			info.SegmentType = SegmentTypeParity
		case "_manifest":
			info.SegmentType = SegmentTypeManifest
		default:
			return Info{}, &MalformedNameError{Name: rawName, Reason: "unknown segment type: " + rest[0]}
		}
		segNo, err := strconv.ParseUint(rest[1], 10, 64)
		if err != nil {
			return Info{}, &MalformedNameError{Name: rawName, Reason: "non-numeric segNo: " + err.Error()}
		}
		info.SegNo = segNo
		info.HasSegNo = true
	default:
		return Info{}, &MalformedNameError{Name: rawName, Reason: "too many trailing components"}
	}

	return info, nil
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "/" + b
}

// Build assembles a full segment name from its parts.
func Build(base, stream, thread string, class Class, sampleNo uint64, segType SegmentType, segNo uint64) string {
	prefix := joinNonEmpty(joinNonEmpty(joinNonEmpty(base, stream), thread), fmt.Sprintf("%s/%d", class, sampleNo))
	if lit := segType.literal(); lit != "" {
		return fmt.Sprintf("%s/%s/%d", prefix, lit, segNo)
	}
	return fmt.Sprintf("%s/%d", prefix, segNo)
}

// BuildMeta assembles a meta name for a stream (thread == "") or a thread.
func BuildMeta(base, stream, thread string) string {
	p := joinNonEmpty(joinNonEmpty(base, stream), thread)
	return joinNonEmpty(p, "_meta")
}

// ThreadPrefix joins base/stream/thread.
func ThreadPrefix(base, stream, thread string) string {
	return joinNonEmpty(joinNonEmpty(base, stream), thread)
}
