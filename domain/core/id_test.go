package core

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	if id1.IsEmpty() {
		t.Error("NewID returned empty ID")
	}
	if id1 == id2 {
		t.Error("NewID returned duplicate IDs")
	}
	if _, err := uuid.Parse(id1.String()); err != nil {
		t.Errorf("NewID is not a UUID: %v", err)
	}
}

func TestNewInvocationIDIsDeterministic(t *testing.T) {
	fp := ComputeFingerprint(
		ComputeInputHash(map[string][]byte{"metrics.conf": []byte("adc_peak, h_adc, landau_mpv")}),
		ComputeConfigHash(map[string]interface{}{"window": 5, "weak": 2.0}),
	)

	a := NewInvocationID(fp)
	b := NewInvocationID(fp)
	if a != b {
		t.Errorf("expected identical IDs, got %s and %s", a, b)
	}

	other := NewInvocationID(ComputeFingerprint("x", "y"))
	if a == other {
		t.Error("different fingerprints produced the same ID")
	}

	parsed, err := ParseInvocationID(a.String())
	if err != nil {
		t.Fatalf("ParseInvocationID failed: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch: %s vs %s", parsed, a)
	}
}

func TestParseInvocationIDRejectsGarbage(t *testing.T) {
	if _, err := ParseInvocationID(""); err == nil {
		t.Error("expected error for empty ID")
	}
	if _, err := ParseInvocationID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed ID")
	}
}
