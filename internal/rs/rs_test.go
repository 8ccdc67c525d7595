package rs

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := []byte("hello, gopper line robot!")
	cw := Encode(data)
	if len(cw) != len(data)+NumParity {
		t.Fatalf("expected codeword length %d, got %d", len(data)+NumParity, len(cw))
	}

	got, err := Decode(cw)
	if err != nil {
		t.Fatalf("Decode on clean codeword failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %v want %v", got, data)
	}
}

func TestDecodeCorrectsUpToMaxCorrectableErrors(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}
	cw := Encode(data)

	corrupt := append([]byte(nil), cw...)
	// Flip MaxCorrectable distinct bytes.
	positions := []int{0, 3, 5, len(cw) - 1}
	if len(positions) != MaxCorrectable {
		t.Fatalf("test setup: expected %d corrupted positions, got %d", MaxCorrectable, len(positions))
	}
	for _, p := range positions {
		corrupt[p] ^= 0xFF
	}

	got, err := Decode(corrupt)
	if err != nil {
		t.Fatalf("Decode with %d errors should succeed: %v", MaxCorrectable, err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("corrected payload mismatch: got %v want %v", got, data)
	}
}

func TestDecodeFailsWithTooManyErrors(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	cw := Encode(data)

	corrupt := append([]byte(nil), cw...)
	for _, p := range []int{0, 1, 2, 3, 4} { // MaxCorrectable+1 errors
		corrupt[p] ^= 0xFF
	}

	if _, err := Decode(corrupt); err == nil {
		t.Fatal("expected Decode to fail with more errors than the code can correct")
	}
}

func TestEncodeRejectsEmptyData(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Encode to panic on empty data")
		}
	}()
	Encode(nil)
}

func TestDecodeCleanCodewordIsNoOp(t *testing.T) {
	data := []byte{1, 2, 3}
	cw := Encode(data)
	got, err := Decode(cw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v want %v", got, data)
	}
}
