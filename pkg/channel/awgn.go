// Package channel models the transmission path between the encoder and the
// decoder: antipodal mapping, additive white Gaussian noise and the soft
// quantizer that turns noisy samples into decoder input levels.
package channel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BPSK maps coded bits onto unit-energy antipodal symbols: 0 -> -1, 1 -> +1.
func BPSK(bits []uint8) []float64 {
	out := make([]float64, len(bits))
	for i, b := range bits {
		if b != 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

// EbN0ToEsN0 converts an information-bit SNR to a coded-symbol SNR for a
// code carrying rate information bits per channel symbol.
func EbN0ToEsN0(ebn0dB, rate float64) float64 {
	return ebn0dB + 10*math.Log10(rate)
}

// AWGN adds real Gaussian noise to unit-energy symbols at a fixed Es/N0.
// An AWGN value is not safe for concurrent use; give each goroutine its own.
type AWGN struct {
	esn0dB float64
	noise  distuv.Normal
}

// NewAWGN creates a noise source for the given Es/N0 in dB. The same seed
// always produces the same noise sequence.
func NewAWGN(esn0dB float64, seed uint64) *AWGN {
	esn0 := math.Pow(10, esn0dB/10)
	return &AWGN{
		esn0dB: esn0dB,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: math.Sqrt(1 / (2 * esn0)),
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// EsN0dB returns the configured symbol SNR.
func (a *AWGN) EsN0dB() float64 { return a.esn0dB }

// Sigma returns the per-sample noise standard deviation.
func (a *AWGN) Sigma() float64 { return a.noise.Sigma }

// Apply returns symbols with noise added. The input is not modified.
func (a *AWGN) Apply(symbols []float64) []float64 {
	out := make([]float64, len(symbols))
	for i, s := range symbols {
		out[i] = s + a.noise.Rand()
	}
	return out
}

// NoiseVariance estimates the noise power between a clean and a noisy
// sequence of equal length.
func NoiseVariance(clean, noisy []float64) (float64, error) {
	if len(clean) != len(noisy) {
		return 0, fmt.Errorf("length mismatch: %d clean, %d noisy", len(clean), len(noisy))
	}
	if len(clean) < 2 {
		return 0, fmt.Errorf("need at least 2 samples, got %d", len(clean))
	}
	diff := make([]float64, len(clean))
	for i := range clean {
		diff[i] = noisy[i] - clean[i]
	}
	return stat.Variance(diff, nil), nil
}
