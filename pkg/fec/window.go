package fec

// survivor is the winning branch into one state at one trellis stage.
type survivor struct {
	prev    State
	bit     uint8
	reached bool
}

// stageWindow is a fixed ring of trellis stages. Slot memory is allocated
// once and reused as stages are retired, so the window never grows past its
// capacity however long the stream is.
type stageWindow struct {
	slots [][]survivor
	head  int // oldest stage
	count int
}

func newStageWindow(capacity, numStates int) *stageWindow {
	backing := make([]survivor, capacity*numStates)
	slots := make([][]survivor, capacity)
	for i := range slots {
		slots[i] = backing[i*numStates : (i+1)*numStates : (i+1)*numStates]
	}
	return &stageWindow{slots: slots}
}

func (w *stageWindow) capacity() int { return len(w.slots) }

func (w *stageWindow) full() bool { return w.count == len(w.slots) }

// push claims the slot after the newest stage. The caller must retire a
// stage first when the window is full.
func (w *stageWindow) push() []survivor {
	if w.full() {
		panic("fec: stage window overflow")
	}
	slot := w.slots[(w.head+w.count)%len(w.slots)]
	w.count++
	return slot
}

// at returns the i-th buffered stage, 0 being the oldest.
func (w *stageWindow) at(i int) []survivor {
	return w.slots[(w.head+i)%len(w.slots)]
}

func (w *stageWindow) retire() {
	if w.count == 0 {
		return
	}
	w.head = (w.head + 1) % len(w.slots)
	w.count--
}

func (w *stageWindow) reset() {
	w.head = 0
	w.count = 0
}

// traceback follows survivor links from state at the newest stage back to
// the oldest buffered stage and writes each stage's input bit into out,
// oldest first. out must hold w.count entries.
func (w *stageWindow) traceback(from State, out []uint8) {
	state := from
	for i := w.count - 1; i >= 0; i-- {
		sv := w.at(i)[state]
		out[i] = sv.bit
		state = sv.prev
	}
}

// oldestBit returns only the bit of the oldest stage on the path ending at from.
func (w *stageWindow) oldestBit(from State) uint8 {
	state := from
	var bit uint8
	for i := w.count - 1; i >= 0; i-- {
		sv := w.at(i)[state]
		bit = sv.bit
		state = sv.prev
	}
	return bit
}
