package fec

import (
	"fmt"
	"math"
)

const unreached = math.MaxInt64

// Decoder is a streaming Viterbi decoder with a fixed decision depth.
//
// Each Push consumes one group of n received values (one trellis stage).
// Once D+1 stages are buffered the decoder traces back D links from the
// state with the smallest path metric (lowest index on ties), emits the
// oldest stage's bit and retires that stage. Flush emits whatever is still
// buffered, tracing back from the best state at the end of the stream.
//
// A Decoder is owned by a single goroutine. The Code it decodes is shared
// read-only.
type Decoder struct {
	code   *Code
	metric Metric

	metrics []int64
	scratch []int64
	window  *stageWindow

	stages  uint64
	emitted uint64
}

// NewDecoder creates a decoder for code using the given branch metric.
func NewDecoder(code *Code, metric Metric) (*Decoder, error) {
	if code == nil {
		return nil, fmt.Errorf("%w: nil code", ErrConfiguration)
	}
	if metric == nil {
		return nil, fmt.Errorf("%w: nil metric", ErrConfiguration)
	}
	d := &Decoder{
		code:    code,
		metric:  metric,
		metrics: make([]int64, code.numStates),
		scratch: make([]int64, code.numStates),
		window:  newStageWindow(code.depth+1, code.numStates),
	}
	d.Reset()
	return d, nil
}

// Reset returns the decoder to stage 0: state 0 at metric 0, every other
// state unreached, no buffered stages.
func (d *Decoder) Reset() {
	for i := range d.metrics {
		d.metrics[i] = unreached
	}
	d.metrics[0] = 0
	d.window.reset()
	d.stages = 0
	d.emitted = 0
}

// Check validates one received group without touching decoder state.
func (d *Decoder) Check(group []int) error {
	if len(group) != d.code.n {
		return fmt.Errorf("%w: symbol group has %d values, expected %d", ErrInvalidInput, len(group), d.code.n)
	}
	for i, v := range group {
		if err := d.metric.Check(v); err != nil {
			return fmt.Errorf("position %d: %w", i, err)
		}
	}
	return nil
}

// Push runs one add-compare-select step. When the window holds more than D
// stages it returns the decided bit for the oldest one with ok set.
func (d *Decoder) Push(group []int) (bit uint8, ok bool, err error) {
	if err := d.Check(group); err != nil {
		return 0, false, err
	}
	d.step(group)

	if !d.window.full() {
		return 0, false, nil
	}
	bit = d.window.oldestBit(d.bestState())
	d.window.retire()
	d.emitted++
	return bit, true, nil
}

func (d *Decoder) step(group []int) {
	c := d.code
	mask := c.numStates - 1
	shift := c.k - 2
	stage := d.window.push()

	for dst := 0; dst < c.numStates; dst++ {
		b := uint8(dst >> shift)
		best := int64(unreached)
		var winner State

		// predecessors of dst in ascending order; strict < keeps the lowest on ties
		base := (dst << 1) & mask
		for x := 0; x < 2; x++ {
			prev := base | x
			pm := d.metrics[prev]
			if pm == unreached {
				continue
			}
			m := pm + d.metric.Branch(group, c.output[prev<<1|int(b)])
			if m < best {
				best = m
				winner = State(prev)
			}
		}

		d.scratch[dst] = best
		stage[dst] = survivor{prev: winner, bit: b, reached: best != unreached}
	}

	d.metrics, d.scratch = d.scratch, d.metrics
	d.stages++
}

// bestState returns the reached state with the smallest path metric,
// lowest index first on ties.
func (d *Decoder) bestState() State {
	best := int64(unreached)
	var s State
	for i, m := range d.metrics {
		if m < best {
			best = m
			s = State(i)
		}
	}
	return s
}

// Flush emits the bits of every buffered stage, oldest first, along the
// path ending in the best state. The decoder is left empty but keeps its
// path metrics; call Reset before decoding an unrelated stream.
func (d *Decoder) Flush() []uint8 {
	if d.window.count == 0 {
		return nil
	}
	out := make([]uint8, d.window.count)
	d.window.traceback(d.bestState(), out)
	d.emitted += uint64(len(out))
	d.window.reset()
	return out
}

// Buffered returns the number of stages awaiting a decision.
func (d *Decoder) Buffered() int { return d.window.count }

// Stages returns the number of trellis stages processed since Reset.
func (d *Decoder) Stages() uint64 { return d.stages }

// Emitted returns the number of bits decided since Reset.
func (d *Decoder) Emitted() uint64 { return d.emitted }

// PathMetrics returns a copy of the current path metrics. Unreached states
// are reported as -1.
func (d *Decoder) PathMetrics() []int64 {
	out := make([]int64, len(d.metrics))
	for i, m := range d.metrics {
		if m == unreached {
			out[i] = -1
		} else {
			out[i] = m
		}
	}
	return out
}

// MinPathMetric returns the smallest path metric over all reached states.
func (d *Decoder) MinPathMetric() int64 {
	return d.metrics[d.bestState()]
}

// BestState returns the state the next decision would trace back from.
func (d *Decoder) BestState() State { return d.bestState() }

// Decode runs a whole received stream through a fresh decoder. The stream is
// validated before any decoding starts, so an error leaves no partial
// result. The output has one bit per stage.
func (c *Code) Decode(received []int, metric Metric) ([]uint8, error) {
	if len(received)%c.n != 0 {
		return nil, fmt.Errorf("%w: received length %d is not a multiple of %d", ErrInvalidInput, len(received), c.n)
	}
	d, err := NewDecoder(c, metric)
	if err != nil {
		return nil, err
	}
	for i, v := range received {
		if err := metric.Check(v); err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
	}

	out := make([]uint8, 0, len(received)/c.n)
	for i := 0; i < len(received); i += c.n {
		d.step(received[i : i+c.n])
		if d.window.full() {
			out = append(out, d.window.oldestBit(d.bestState()))
			d.window.retire()
			d.emitted++
		}
	}
	return append(out, d.Flush()...), nil
}
