package fec

import "fmt"

// Encode runs bits through the shift register starting at start and returns
// the coded stream (n bits per input bit, in generator order) together with
// the register state after the last bit.
func (c *Code) Encode(bits []uint8, start State) ([]uint8, State, error) {
	if !c.ValidState(start) {
		return nil, 0, fmt.Errorf("%w: start state %d outside [0, %d)", ErrInvalidInput, start, c.numStates)
	}
	if err := checkBits(bits); err != nil {
		return nil, 0, err
	}

	out := make([]uint8, 0, len(bits)*c.n)
	state := start
	for _, b := range bits {
		idx := int(state)<<1 | int(b)
		out = append(out, c.output[idx]...)
		state = c.next[idx]
	}
	return out, state, nil
}

// EncodeTerminated encodes bits followed by L-1 zero tail bits, driving the
// register back to state 0. The output carries n*(len(bits)+L-1) symbols.
func (c *Code) EncodeTerminated(bits []uint8, start State) ([]uint8, error) {
	if err := checkBits(bits); err != nil {
		return nil, err
	}
	padded := make([]uint8, len(bits)+c.k-1)
	copy(padded, bits)
	out, _, err := c.Encode(padded, start)
	return out, err
}

// Encoder threads the register state across successive Write calls so a
// long stream can be encoded in chunks. It is not safe for concurrent use.
type Encoder struct {
	code  *Code
	state State
}

// NewEncoder creates an encoder starting in state 0.
func NewEncoder(code *Code) *Encoder {
	return &Encoder{code: code}
}

// Write encodes a chunk and advances the register.
func (e *Encoder) Write(bits []uint8) ([]uint8, error) {
	out, next, err := e.code.Encode(bits, e.state)
	if err != nil {
		return nil, err
	}
	e.state = next
	return out, nil
}

// Terminate emits the L-1 zero tail bits and leaves the register at 0.
func (e *Encoder) Terminate() []uint8 {
	out, next, _ := e.code.Encode(make([]uint8, e.code.k-1), e.state)
	e.state = next
	return out
}

// State returns the current register contents.
func (e *Encoder) State() State { return e.state }

// Reset loads the register with s.
func (e *Encoder) Reset(s State) error {
	if !e.code.ValidState(s) {
		return fmt.Errorf("%w: state %d outside [0, %d)", ErrInvalidInput, s, e.code.numStates)
	}
	e.state = s
	return nil
}
