package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	// NameComponentRegex validates a single NDN name component: the
	// character set this engine emits for stream, thread and base path
	// segments.
	NameComponentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// StreamNameRegex validates a stream identifier, the first path
	// component after the base prefix.
	StreamNameRegex = NameComponentRegex

	// ThreadNameRegex validates a thread identifier.
	ThreadNameRegex = NameComponentRegex
)

// ValidateNameComponent validates a single "/"-free NDN name component.
func ValidateNameComponent(component, fieldName string) error {
	if component == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(component) > 255 {
		return fmt.Errorf("%s is too long (max 255 characters)", fieldName)
	}
	if strings.Contains(component, "/") {
		return fmt.Errorf("%s must not contain '/'", fieldName)
	}
	if !NameComponentRegex.MatchString(component) {
		return fmt.Errorf("%s contains invalid characters (only letters, digits, '_', '.', '-' allowed)", fieldName)
	}
	return nil
}

// ValidateBasePrefix validates a "/"-joined NDN base prefix: every
// component between slashes must itself be a valid name component.
func ValidateBasePrefix(prefix string) error {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return fmt.Errorf("base prefix is required")
	}
	for _, part := range strings.Split(trimmed, "/") {
		if err := ValidateNameComponent(part, "base prefix component"); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStreamName validates a stream identifier.
func ValidateStreamName(stream string) error {
	return ValidateNameComponent(stream, "stream name")
}

// ValidateThreadName validates a thread identifier.
func ValidateThreadName(thread string) error {
	return ValidateNameComponent(thread, "thread name")
}

// ValidateNonNegativeInt validates that an integer sequence/segment/sample
// number is not negative. Go's unsigned sample/segment-number types make
// this check trivially true at the type level for wire values already
// parsed off the network; this validates config-sourced or user-sourced
// signed integers before they are narrowed to uint64.
func ValidateNonNegativeInt(v int64, fieldName string) error {
	if v < 0 {
		return fmt.Errorf("%s must be >= 0", fieldName)
	}
	return nil
}

// ValidatePositiveInt validates a strictly-positive integer, used for
// window limits, wire lengths and rate parameters.
func ValidatePositiveInt(v int64, fieldName string) error {
	if v <= 0 {
		return fmt.Errorf("%s must be > 0", fieldName)
	}
	return nil
}

// ValidateHexDigest validates that s is a hex-encoded digest of exactly
// digestLen bytes, the form segment/manifest digests take on the wire.
func ValidateHexDigest(s string, digestLen int, fieldName string) error {
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%s is not valid hex: %w", fieldName, err)
	}
	if len(raw) != digestLen {
		return fmt.Errorf("%s must decode to %d bytes, got %d", fieldName, digestLen, len(raw))
	}
	return nil
}

// ValidateParityRatio validates a FEC parity ratio, which must be
// non-negative (the producer replaces 0 with its default ratio).
func ValidateParityRatio(ratio float64) error {
	if ratio < 0 {
		return fmt.Errorf("parity ratio must be >= 0")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming.
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
