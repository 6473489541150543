// Package fec implements a rate-1/n binary convolutional code with a
// sliding-window Viterbi decoder.
//
// Bit ordering conventions used throughout the package:
//
//   - A generator polynomial is written newest-tap first: "111" taps the
//     current input bit and the two previous bits, "101" skips the middle one.
//   - A State holds the L-1 previous input bits. Its most significant bit
//     (bit L-2) is the most recent input, bit 0 the oldest. FormatState
//     prints it most-recent-first, so "10" means the last input was 1 and the
//     one before it 0.
//   - The L-bit window matched against a generator is (b << (L-1)) | state.
package fec

import (
	"fmt"
	"strings"
)

const (
	// MinConstraintLength is the shortest register that still has memory.
	MinConstraintLength = 2
	// MaxConstraintLength caps the trellis at 2^15 states.
	MaxConstraintLength = 16
	// MaxGenerators caps the number of output bits per input bit.
	MaxGenerators = 32
)

// State is the encoder shift register, L-1 bits wide.
type State uint32

// Code is an immutable rate-1/n convolutional code with its precomputed
// trellis. It is safe to share between goroutines.
type Code struct {
	generators []uint32 // generator masks, MSB = newest tap
	k          int      // constraint length L
	n          int      // outputs per input bit
	numStates  int
	depth      int

	// indexed by state<<1 | bit
	next   []State
	output [][]uint8
}

// NewCode builds a code from generator strings such as "111" and "101".
func NewCode(generators []string, depth int) (*Code, error) {
	polys := make([][]uint8, len(generators))
	for i, g := range generators {
		g = strings.TrimSpace(g)
		p := make([]uint8, len(g))
		for j, r := range g {
			switch r {
			case '0':
			case '1':
				p[j] = 1
			default:
				return nil, fmt.Errorf("%w: generator %d (%q) has non-binary character %q", ErrConfiguration, i, g, r)
			}
		}
		polys[i] = p
	}
	return NewCodeFromBits(polys, depth)
}

// NewCodeFromBits builds a code from generator bit slices, newest tap first.
func NewCodeFromBits(generators [][]uint8, depth int) (*Code, error) {
	if len(generators) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 generators, got %d", ErrConfiguration, len(generators))
	}
	if len(generators) > MaxGenerators {
		return nil, fmt.Errorf("%w: at most %d generators supported, got %d", ErrConfiguration, MaxGenerators, len(generators))
	}
	if depth < 1 {
		return nil, fmt.Errorf("%w: decision depth must be positive, got %d", ErrConfiguration, depth)
	}

	k := len(generators[0])
	if k < MinConstraintLength || k > MaxConstraintLength {
		return nil, fmt.Errorf("%w: constraint length %d outside [%d, %d]",
			ErrConfiguration, k, MinConstraintLength, MaxConstraintLength)
	}

	masks := make([]uint32, len(generators))
	for i, g := range generators {
		if len(g) != k {
			return nil, fmt.Errorf("%w: generator %d has length %d, expected %d", ErrConfiguration, i, len(g), k)
		}
		var m uint32
		for j, b := range g {
			if b > 1 {
				return nil, fmt.Errorf("%w: generator %d has non-binary tap %d at %d", ErrConfiguration, i, b, j)
			}
			m = m<<1 | uint32(b)
		}
		masks[i] = m
	}

	c := &Code{
		generators: masks,
		k:          k,
		n:          len(masks),
		numStates:  1 << (k - 1),
		depth:      depth,
	}
	c.buildTrellis()
	return c, nil
}

func (c *Code) buildTrellis() {
	c.next = make([]State, c.numStates*2)
	c.output = make([][]uint8, c.numStates*2)

	// one backing array for all output symbols
	symbols := make([]uint8, c.numStates*2*c.n)

	for s := 0; s < c.numStates; s++ {
		for b := 0; b < 2; b++ {
			idx := s<<1 | b
			window := uint32(b)<<(c.k-1) | uint32(s)

			out := symbols[idx*c.n : (idx+1)*c.n : (idx+1)*c.n]
			for g, mask := range c.generators {
				out[g] = parity(mask & window)
			}

			c.output[idx] = out
			c.next[idx] = State(uint32(b)<<(c.k-2) | uint32(s)>>1)
		}
	}
}

// ConstraintLength returns L.
func (c *Code) ConstraintLength() int { return c.k }

// Rate returns n, the number of coded bits emitted per input bit.
func (c *Code) Rate() int { return c.n }

// NumStates returns 2^(L-1).
func (c *Code) NumStates() int { return c.numStates }

// DecisionDepth returns D.
func (c *Code) DecisionDepth() int { return c.depth }

// Generators returns the generator polynomials as strings, newest tap first.
func (c *Code) Generators() []string {
	out := make([]string, len(c.generators))
	for i, m := range c.generators {
		out[i] = fmt.Sprintf("%0*b", c.k, m)
	}
	return out
}

// Next returns the state reached from s on input bit b.
func (c *Code) Next(s State, b uint8) State {
	return c.next[int(s)<<1|int(b&1)]
}

// Output returns the n expected coded bits for the transition (s, b).
// The returned slice belongs to the code and must not be modified.
func (c *Code) Output(s State, b uint8) []uint8 {
	return c.output[int(s)<<1|int(b&1)]
}

// ValidState reports whether s fits in the L-1 bit register.
func (c *Code) ValidState(s State) bool {
	return int(s) < c.numStates
}

// FormatState renders s most-recent-bit first, e.g. "10".
func (c *Code) FormatState(s State) string {
	return fmt.Sprintf("%0*b", c.k-1, uint32(s))
}

// ParseState parses a most-recent-first register string such as "10".
func (c *Code) ParseState(str string) (State, error) {
	if len(str) != c.k-1 {
		return 0, fmt.Errorf("%w: state %q must have %d bits", ErrInvalidInput, str, c.k-1)
	}
	var s uint32
	for _, r := range str {
		switch r {
		case '0':
			s <<= 1
		case '1':
			s = s<<1 | 1
		default:
			return 0, fmt.Errorf("%w: state %q has non-binary character %q", ErrInvalidInput, str, r)
		}
	}
	return State(s), nil
}

// String describes the code, e.g. "K=3 rate 1/2 [111 101] depth 10".
func (c *Code) String() string {
	return fmt.Sprintf("K=%d rate 1/%d [%s] depth %d",
		c.k, c.n, strings.Join(c.Generators(), " "), c.depth)
}
