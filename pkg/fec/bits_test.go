package fec

import (
	"errors"
	"testing"
)

func TestPackUnpackBits(t *testing.T) {
	in := mustParse(t, "1010 1010 0101 1")
	packed := PackBits(in)
	if len(packed) != 2 || packed[0] != 0xAA || packed[1] != 0x58 {
		t.Fatalf("PackBits = % X, want AA 58", packed)
	}

	out, err := UnpackBits(packed, len(in))
	if err != nil {
		t.Fatalf("UnpackBits failed: %v", err)
	}
	if FormatBits(out) != FormatBits(in) {
		t.Errorf("UnpackBits = %s, want %s", FormatBits(out), FormatBits(in))
	}

	if _, err := UnpackBits(packed, 17); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("too many bits: expected ErrInvalidInput, got %v", err)
	}
}

func TestParseBits(t *testing.T) {
	b, err := ParseBits("1,0_1 1")
	if err != nil {
		t.Fatalf("ParseBits failed: %v", err)
	}
	if FormatBits(b) != "1011" {
		t.Errorf("ParseBits = %s, want 1011", FormatBits(b))
	}

	if _, err := ParseBits("10a1"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParity(t *testing.T) {
	tests := map[uint32]uint8{0: 0, 1: 1, 3: 0, 7: 1, 0xFF: 0, 0x8001: 0, 0x8003: 1}
	for in, want := range tests {
		if got := parity(in); got != want {
			t.Errorf("parity(%#x) = %d, want %d", in, got, want)
		}
	}
}
