package fec

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bit manipulation helpers for MSB-first packed byte buffers
var bitMaskTable = []byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}

func writeBit(p []byte, i int, b bool) {
	if b {
		p[i>>3] |= bitMaskTable[i&7]
	} else {
		p[i>>3] &= ^bitMaskTable[i&7]
	}
}

func readBit(p []byte, i int) bool {
	return (p[i>>3] & bitMaskTable[i&7]) != 0
}

// PackBits packs one-bit-per-byte values into MSB-first bytes.
func PackBits(in []uint8) []byte {
	out := make([]byte, (len(in)+7)/8)
	for i, b := range in {
		writeBit(out, i, b != 0)
	}
	return out
}

// UnpackBits expands the first nBits of an MSB-first buffer into one bit per byte.
func UnpackBits(in []byte, nBits int) ([]uint8, error) {
	if nBits < 0 || nBits > len(in)*8 {
		return nil, fmt.Errorf("%w: %d bits requested from %d bytes", ErrInvalidInput, nBits, len(in))
	}
	out := make([]uint8, nBits)
	for i := range out {
		if readBit(in, i) {
			out[i] = 1
		}
	}
	return out, nil
}

// ParseBits converts a string of '0' and '1' characters into bits.
// Whitespace, commas and underscores are ignored.
func ParseBits(s string) ([]uint8, error) {
	out := make([]uint8, 0, len(s))
	for i, r := range s {
		switch r {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		case ' ', '\t', '\n', ',', '_':
		default:
			return nil, fmt.Errorf("%w: character %q at offset %d is not a bit", ErrInvalidInput, r, i)
		}
	}
	return out, nil
}

// FormatBits renders bits as a string of '0' and '1'.
func FormatBits(in []uint8) string {
	var sb strings.Builder
	sb.Grow(len(in))
	for _, b := range in {
		if b != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func checkBits(in []uint8) error {
	for i, b := range in {
		if b > 1 {
			return fmt.Errorf("%w: value %d at index %d is not a bit", ErrInvalidInput, b, i)
		}
	}
	return nil
}

// parity returns the modulo-2 sum of the set bits of v.
func parity(v uint32) uint8 {
	return uint8(bits.OnesCount32(v) & 1)
}
