package fec

import (
	"errors"
	"testing"
)

func TestNewCode_Valid(t *testing.T) {
	tests := []struct {
		name       string
		generators []string
		depth      int
		k, n       int
		states     int
	}{
		{"K=3 rate 1/2", []string{"111", "101"}, 10, 3, 2, 4},
		{"K=5 YSF", []string{"10011", "11101"}, 20, 5, 2, 16},
		{"K=7 NASA", []string{"1111001", "1011011"}, 35, 7, 2, 64},
		{"K=3 rate 1/3", []string{"111", "111", "101"}, 10, 3, 3, 4},
		{"K=2 minimal", []string{"11", "10"}, 1, 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCode(tt.generators, tt.depth)
			if err != nil {
				t.Fatalf("NewCode failed: %v", err)
			}
			if c.ConstraintLength() != tt.k {
				t.Errorf("ConstraintLength = %d, want %d", c.ConstraintLength(), tt.k)
			}
			if c.Rate() != tt.n {
				t.Errorf("Rate = %d, want %d", c.Rate(), tt.n)
			}
			if c.NumStates() != tt.states {
				t.Errorf("NumStates = %d, want %d", c.NumStates(), tt.states)
			}
			if c.DecisionDepth() != tt.depth {
				t.Errorf("DecisionDepth = %d, want %d", c.DecisionDepth(), tt.depth)
			}
			got := c.Generators()
			for i := range tt.generators {
				if got[i] != tt.generators[i] {
					t.Errorf("Generators()[%d] = %q, want %q", i, got[i], tt.generators[i])
				}
			}
		})
	}
}

func TestNewCode_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name       string
		generators []string
		depth      int
	}{
		{"single generator", []string{"111"}, 10},
		{"no generators", nil, 10},
		{"length mismatch", []string{"111", "10"}, 10},
		{"non-binary character", []string{"121", "101"}, 10},
		{"constraint length 1", []string{"1", "1"}, 10},
		{"constraint length too long", []string{"11111111111111111", "10000000000000001"}, 10},
		{"zero depth", []string{"111", "101"}, 0},
		{"negative depth", []string{"111", "101"}, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCode(tt.generators, tt.depth)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if c != nil {
				t.Error("expected no code on error")
			}
		})
	}
}

func TestNewCodeFromBits_RejectsNonBinaryTap(t *testing.T) {
	_, err := NewCodeFromBits([][]uint8{{1, 1, 1}, {1, 2, 1}}, 5)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestCode_Trellis(t *testing.T) {
	c, err := NewCode([]string{"111", "101"}, 10)
	if err != nil {
		t.Fatalf("NewCode failed: %v", err)
	}

	// state is most-recent-first: "10" == 2 means last input 1, previous 0
	tests := []struct {
		state  string
		bit    uint8
		next   string
		output string
	}{
		{"00", 0, "00", "00"},
		{"00", 1, "10", "11"},
		{"10", 0, "01", "10"},
		{"10", 1, "11", "01"},
		{"01", 0, "00", "11"},
		{"01", 1, "10", "00"},
		{"11", 0, "01", "01"},
		{"11", 1, "11", "10"},
	}

	for _, tt := range tests {
		s, err := c.ParseState(tt.state)
		if err != nil {
			t.Fatalf("ParseState(%q): %v", tt.state, err)
		}
		next := c.Next(s, tt.bit)
		if got := c.FormatState(next); got != tt.next {
			t.Errorf("Next(%s, %d) = %s, want %s", tt.state, tt.bit, got, tt.next)
		}
		if got := FormatBits(c.Output(s, tt.bit)); got != tt.output {
			t.Errorf("Output(%s, %d) = %s, want %s", tt.state, tt.bit, got, tt.output)
		}
	}
}

func TestCode_EveryStateHasTwoPredecessors(t *testing.T) {
	c, err := NewCode([]string{"1111001", "1011011"}, 35)
	if err != nil {
		t.Fatalf("NewCode failed: %v", err)
	}

	incoming := make([]int, c.NumStates())
	for s := 0; s < c.NumStates(); s++ {
		for b := uint8(0); b < 2; b++ {
			incoming[c.Next(State(s), b)]++
		}
	}
	for s, n := range incoming {
		if n != 2 {
			t.Errorf("state %d has %d incoming branches, want 2", s, n)
		}
	}
}

func TestCode_ParseStateErrors(t *testing.T) {
	c, _ := NewCode([]string{"111", "101"}, 10)

	for _, in := range []string{"", "0", "000", "0x"} {
		if _, err := c.ParseState(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseState(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestCode_String(t *testing.T) {
	c, _ := NewCode([]string{"111", "101"}, 10)
	want := "K=3 rate 1/2 [111 101] depth 10"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
