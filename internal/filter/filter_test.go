package filter

import (
	"bytes"
	"testing"
)

func TestInverseInvertsForward(t *testing.T) {
	raw := []byte{10, 200, 3, 250, 0, 128, 64, 33}
	prev := []byte{5, 5, 5, 5, 5, 5, 5, 5}
	fu := 3

	for ft := None; ft <= Paeth; ft++ {
		filtered := make([]byte, len(raw))
		if err := Forward(ft, raw, prev, fu, filtered); err != nil {
			t.Fatalf("Forward(%d): %v", ft, err)
		}
		recon := make([]byte, len(filtered))
		copy(recon, filtered)
		if err := Unfilter(ft, recon, prev, fu); err != nil {
			t.Fatalf("Unfilter(%d): %v", ft, err)
		}
		if !bytes.Equal(recon, raw) {
			t.Errorf("filter %d: round trip mismatch: got %v want %v", ft, recon, raw)
		}
	}
}

func TestFirstScanlineVirtualZeroRow(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6}
	zero := make([]byte, len(raw))
	fu := 2

	// Up on an all-zero previous row behaves exactly like None.
	upOut := make([]byte, len(raw))
	Forward(Up, raw, zero, fu, upOut)
	if !bytes.Equal(upOut, raw) {
		t.Errorf("Up with zero prev should equal raw: got %v want %v", upOut, raw)
	}

	// Paeth on an all-zero previous row behaves exactly like Sub.
	paethOut := make([]byte, len(raw))
	subOut := make([]byte, len(raw))
	Forward(Paeth, raw, zero, fu, paethOut)
	Forward(Sub, raw, zero, fu, subOut)
	if !bytes.Equal(paethOut, subOut) {
		t.Errorf("Paeth with zero prev should equal Sub: got %v want %v", paethOut, subOut)
	}
}

func TestUnknownFilter(t *testing.T) {
	cur := []byte{1, 2, 3}
	prev := []byte{0, 0, 0}
	if err := Unfilter(Type(99), cur, prev, 1); err == nil {
		t.Fatalf("expected error for unknown filter type")
	}
}

func TestSelectBestRoundTrips(t *testing.T) {
	raw := []byte{0, 0, 0, 255, 255, 255, 128, 64, 32, 200, 10, 5}
	prev := []byte{10, 20, 30, 10, 20, 30, 10, 20, 30, 10, 20, 30}
	fu := 3

	c := NewCandidates(len(raw))
	ft, filtered := c.SelectBest(raw, prev, fu)

	got := make([]byte, len(filtered))
	copy(got, filtered)
	if err := Unfilter(ft, got, prev, fu); err != nil {
		t.Fatalf("Unfilter: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("selected filter %d did not round trip: got %v want %v", ft, got, raw)
	}
}

func TestSelectBestTieBreaksToFirstCandidate(t *testing.T) {
	// raw == prev means every filter's residual sums to zero: Up is
	// evaluated first and nothing with an equal score displaces it.
	raw := make([]byte, 16)
	prev := make([]byte, 16)
	c := NewCandidates(len(raw))
	ft, filtered := c.SelectBest(raw, prev, 4)
	if ft != Up {
		t.Fatalf("expected Up to win the all-zero tie, got %d", ft)
	}
	if !bytes.Equal(filtered, raw) {
		t.Fatalf("Up filter output should equal raw when prev is all zero")
	}
}
