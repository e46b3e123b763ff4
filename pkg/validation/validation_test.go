package validation

import "testing"

func TestValidateNameComponent(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid alnum", "stream1", false},
		{"valid with dash underscore dot", "cam-01_v2.test", false},
		{"empty", "", true},
		{"contains slash", "a/b", true},
		{"contains space", "a b", true},
		{"too long", string(make([]byte, 256)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNameComponent(tc.value, "component")
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateBasePrefix(t *testing.T) {
	if err := ValidateBasePrefix("/ndn/rtc"); err != nil {
		t.Fatalf("expected valid prefix, got %v", err)
	}
	if err := ValidateBasePrefix(""); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
	if err := ValidateBasePrefix("/ndn//rtc"); err == nil {
		t.Fatalf("expected error for empty component")
	}
}

func TestValidateNonNegativeInt(t *testing.T) {
	if err := ValidateNonNegativeInt(0, "sampleNo"); err != nil {
		t.Fatalf("expected 0 to be valid, got %v", err)
	}
	if err := ValidateNonNegativeInt(-1, "sampleNo"); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := ValidatePositiveInt(1, "wireLen"); err != nil {
		t.Fatalf("expected 1 to be valid, got %v", err)
	}
	if err := ValidatePositiveInt(0, "wireLen"); err == nil {
		t.Fatalf("expected error for zero value")
	}
}

func TestValidateHexDigest(t *testing.T) {
	if err := ValidateHexDigest("deadbeef", 4, "digest"); err != nil {
		t.Fatalf("expected valid digest, got %v", err)
	}
	if err := ValidateHexDigest("nothex!!", 4, "digest"); err == nil {
		t.Fatalf("expected error for non-hex string")
	}
	if err := ValidateHexDigest("dead", 4, "digest"); err == nil {
		t.Fatalf("expected error for wrong length")
	}
	if err := ValidateHexDigest("", 4, "digest"); err == nil {
		t.Fatalf("expected error for empty digest")
	}
}

func TestValidateParityRatio(t *testing.T) {
	if err := ValidateParityRatio(0); err != nil {
		t.Fatalf("expected 0 to be valid, got %v", err)
	}
	if err := ValidateParityRatio(0.25); err != nil {
		t.Fatalf("expected 0.25 to be valid, got %v", err)
	}
	if err := ValidateParityRatio(-0.1); err == nil {
		t.Fatalf("expected error for negative ratio")
	}
}
