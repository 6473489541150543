package channel

import (
	"fmt"
	"math"
)

// Quantizer maps noisy antipodal samples onto Bits-bit soft levels. A
// sample of -1 lands on level 0, +1 on the top level; anything outside is
// clamped.
type Quantizer struct {
	Bits int
}

// NewQuantizer validates the level width.
func NewQuantizer(bits int) (Quantizer, error) {
	if bits < 1 || bits > 16 {
		return Quantizer{}, fmt.Errorf("quantizer bits %d outside [1, 16]", bits)
	}
	return Quantizer{Bits: bits}, nil
}

// MaxLevel returns the level that represents a confident 1.
func (q Quantizer) MaxLevel() int { return 1<<q.Bits - 1 }

// Level quantizes a single sample.
func (q Quantizer) Level(y float64) int {
	top := q.MaxLevel()
	v := int(math.Round((y + 1) / 2 * float64(top)))
	return max(0, min(top, v))
}

// Quantize quantizes a sequence of samples.
func (q Quantizer) Quantize(y []float64) []int {
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = q.Level(v)
	}
	return out
}

// HardSlice makes 0/1 decisions on antipodal samples. Zero slices to 1.
func HardSlice(y []float64) []int {
	out := make([]int, len(y))
	for i, v := range y {
		if v >= 0 {
			out[i] = 1
		}
	}
	return out
}
