package fec

import (
	"errors"
	"testing"
)

func TestHardMetric(t *testing.T) {
	m := HardMetric{}
	tests := []struct {
		received []int
		expected []uint8
		want     int64
	}{
		{[]int{0, 0}, []uint8{0, 0}, 0},
		{[]int{1, 0}, []uint8{0, 0}, 1},
		{[]int{1, 1}, []uint8{0, 0}, 2},
		{[]int{Erasure, 1}, []uint8{0, 0}, 1},
		{[]int{Erasure, Erasure, 0}, []uint8{1, 1, 1}, 1},
	}
	for _, tt := range tests {
		if got := m.Branch(tt.received, tt.expected); got != tt.want {
			t.Errorf("Branch(%v, %v) = %d, want %d", tt.received, tt.expected, got, tt.want)
		}
	}

	for _, v := range []int{0, 1, Erasure} {
		if err := m.Check(v); err != nil {
			t.Errorf("Check(%d) failed: %v", v, err)
		}
	}
	for _, v := range []int{2, -2, 7} {
		if err := m.Check(v); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Check(%d): expected ErrInvalidInput, got %v", v, err)
		}
	}
}

func TestSoftMetric(t *testing.T) {
	m, err := NewSoftMetric(3)
	if err != nil {
		t.Fatalf("NewSoftMetric failed: %v", err)
	}
	if m.MaxLevel() != 7 {
		t.Errorf("MaxLevel = %d, want 7", m.MaxLevel())
	}
	if m.Name() != "soft3" {
		t.Errorf("Name = %q, want soft3", m.Name())
	}

	tests := []struct {
		received []int
		expected []uint8
		want     int64
	}{
		{[]int{0, 7}, []uint8{0, 1}, 0},
		{[]int{7, 0}, []uint8{0, 1}, 98},
		{[]int{3, 4}, []uint8{0, 1}, 18},
		{[]int{Erasure, 5}, []uint8{1, 0}, 25},
	}
	for _, tt := range tests {
		if got := m.Branch(tt.received, tt.expected); got != tt.want {
			t.Errorf("Branch(%v, %v) = %d, want %d", tt.received, tt.expected, got, tt.want)
		}
	}

	if err := m.Check(8); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Check(8): expected ErrInvalidInput, got %v", err)
	}
	if _, err := NewSoftMetric(0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("NewSoftMetric(0): expected ErrConfiguration, got %v", err)
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("hard", 0)
	if err != nil || m.Name() != "hard" {
		t.Errorf("ParseMetric(hard) = %v, %v", m, err)
	}
	m, err = ParseMetric("soft", 4)
	if err != nil || m.Name() != "soft4" {
		t.Errorf("ParseMetric(soft, 4) = %v, %v", m, err)
	}
	if _, err := ParseMetric("euclid", 3); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown metric: expected ErrConfiguration, got %v", err)
	}
}
