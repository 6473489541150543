package fec

import "fmt"

// PuncturePattern holds one keep/drop row per generator. Row k, column t
// says whether coded bit k of stage t (mod period) is transmitted.
type PuncturePattern struct {
	rows   [][]bool
	period int
	kept   int // transmitted bits per period
}

// NewPuncturePattern parses rows such as "110" and "101" (rate 3/4 from a
// rate 1/2 mother code).
func NewPuncturePattern(rows []string) (*PuncturePattern, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty puncture pattern", ErrConfiguration)
	}
	p := &PuncturePattern{period: len(rows[0])}
	if p.period == 0 {
		return nil, fmt.Errorf("%w: puncture rows must not be empty", ErrConfiguration)
	}
	for i, row := range rows {
		if len(row) != p.period {
			return nil, fmt.Errorf("%w: puncture row %d has length %d, expected %d", ErrConfiguration, i, len(row), p.period)
		}
		r := make([]bool, p.period)
		for j, ch := range row {
			switch ch {
			case '0':
			case '1':
				r[j] = true
				p.kept++
			default:
				return nil, fmt.Errorf("%w: puncture row %d has non-binary character %q", ErrConfiguration, i, ch)
			}
		}
		p.rows = append(p.rows, r)
	}
	for t := 0; t < p.period; t++ {
		sent := false
		for _, r := range p.rows {
			sent = sent || r[t]
		}
		if !sent {
			return nil, fmt.Errorf("%w: puncture column %d drops every coded bit", ErrConfiguration, t)
		}
	}
	return p, nil
}

// Period returns the number of stages after which the pattern repeats.
func (p *PuncturePattern) Period() int { return p.period }

// Rows returns the number of generators the pattern covers.
func (p *PuncturePattern) Rows() int { return len(p.rows) }

// Rate returns the punctured code rate as input bits over transmitted bits.
func (p *PuncturePattern) Rate() (num, den int) { return p.period, p.kept }

// String renders the rows comma separated, e.g. "110,101".
func (p *PuncturePattern) String() string {
	out := make([]byte, 0, len(p.rows)*(p.period+1))
	for i, r := range p.rows {
		if i > 0 {
			out = append(out, ',')
		}
		for _, keep := range r {
			if keep {
				out = append(out, '1')
			} else {
				out = append(out, '0')
			}
		}
	}
	return string(out)
}

// PuncturedLen returns how many symbols survive puncturing of the given
// number of stages.
func (p *PuncturePattern) PuncturedLen(stages int) int {
	full := stages / p.period
	n := full * p.kept
	for t := 0; t < stages%p.period; t++ {
		for _, r := range p.rows {
			if r[t] {
				n++
			}
		}
	}
	return n
}

// Stages is the inverse of PuncturedLen: the number of trellis stages a
// punctured stream of n symbols carries. Every column keeps at least one
// bit, so the answer is unique when it exists.
func (p *PuncturePattern) Stages(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: negative punctured length %d", ErrInvalidInput, n)
	}
	stages := n / p.kept * p.period
	rem := n % p.kept
	for t := 0; rem > 0; t++ {
		for _, r := range p.rows {
			if r[t] {
				rem--
			}
		}
		stages++
	}
	if rem < 0 {
		return 0, fmt.Errorf("%w: punctured length %d does not end on a stage boundary", ErrInvalidInput, n)
	}
	return stages, nil
}

// Puncture removes the dropped positions from a coded stream.
func Puncture[T any](symbols []T, p *PuncturePattern) ([]T, error) {
	n := len(p.rows)
	if len(symbols)%n != 0 {
		return nil, fmt.Errorf("%w: coded length %d is not a multiple of %d", ErrInvalidInput, len(symbols), n)
	}
	stages := len(symbols) / n
	out := make([]T, 0, p.PuncturedLen(stages))
	for t := 0; t < stages; t++ {
		col := t % p.period
		for k := 0; k < n; k++ {
			if p.rows[k][col] {
				out = append(out, symbols[t*n+k])
			}
		}
	}
	return out, nil
}

// Depuncture restores a punctured stream of received values to stages
// groups, filling dropped positions with Erasure.
func Depuncture(received []int, p *PuncturePattern, stages int) ([]int, error) {
	if want := p.PuncturedLen(stages); len(received) != want {
		return nil, fmt.Errorf("%w: punctured length %d, expected %d for %d stages", ErrInvalidInput, len(received), want, stages)
	}
	n := len(p.rows)
	out := make([]int, stages*n)
	j := 0
	for t := 0; t < stages; t++ {
		col := t % p.period
		for k := 0; k < n; k++ {
			if p.rows[k][col] {
				out[t*n+k] = received[j]
				j++
			} else {
				out[t*n+k] = Erasure
			}
		}
	}
	return out, nil
}
