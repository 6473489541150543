package fec

import "fmt"

// Erasure marks a received position that carries no information, such as a
// symbol removed by puncturing. Branch metrics skip it.
const Erasure = -1

// Metric computes the distance between one received symbol group and the
// ideal coded bits of a trellis branch.
type Metric interface {
	// Name identifies the metric in logs and configuration.
	Name() string
	// Check validates a single received value.
	Check(v int) error
	// Branch returns the distance between received and expected.
	// Both slices have length n and received has passed Check.
	Branch(received []int, expected []uint8) int64
}

// HardMetric scores exact 0/1 decisions by Hamming distance.
type HardMetric struct{}

func (HardMetric) Name() string { return "hard" }

func (HardMetric) Check(v int) error {
	if v != 0 && v != 1 && v != Erasure {
		return fmt.Errorf("%w: hard decision value %d is not 0 or 1", ErrInvalidInput, v)
	}
	return nil
}

func (HardMetric) Branch(received []int, expected []uint8) int64 {
	var d int64
	for i, r := range received {
		if r != Erasure && r != int(expected[i]) {
			d++
		}
	}
	return d
}

// SoftMetric scores quantized levels in [0, 2^Bits-1] by squared error
// against the ideal levels 0 (bit 0) and 2^Bits-1 (bit 1).
type SoftMetric struct {
	Bits int
}

// NewSoftMetric validates the quantizer width.
func NewSoftMetric(bits int) (SoftMetric, error) {
	if bits < 1 || bits > 16 {
		return SoftMetric{}, fmt.Errorf("%w: soft quantization bits %d outside [1, 16]", ErrConfiguration, bits)
	}
	return SoftMetric{Bits: bits}, nil
}

func (m SoftMetric) Name() string { return fmt.Sprintf("soft%d", m.Bits) }

// MaxLevel returns the level that represents a confident 1.
func (m SoftMetric) MaxLevel() int { return 1<<m.Bits - 1 }

func (m SoftMetric) Check(v int) error {
	if v == Erasure {
		return nil
	}
	if v < 0 || v > m.MaxLevel() {
		return fmt.Errorf("%w: soft value %d outside [0, %d]", ErrInvalidInput, v, m.MaxLevel())
	}
	return nil
}

func (m SoftMetric) Branch(received []int, expected []uint8) int64 {
	top := m.MaxLevel()
	var d int64
	for i, r := range received {
		if r == Erasure {
			continue
		}
		diff := int64(r - int(expected[i])*top)
		d += diff * diff
	}
	return d
}

// ParseMetric maps a configuration name to a Metric. quantBits is only used
// by "soft".
func ParseMetric(name string, quantBits int) (Metric, error) {
	switch name {
	case "hard":
		return HardMetric{}, nil
	case "soft", "":
		return NewSoftMetric(quantBits)
	default:
		return nil, fmt.Errorf("%w: unknown metric %q (must be hard or soft)", ErrConfiguration, name)
	}
}
