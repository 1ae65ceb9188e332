package fiber

import "gonum.org/v1/gonum/spatial/r3"

// buffer collects the points of one trace. Half 0 grows backwards from the
// seed and half 1 forwards.
type buffer interface {
	reset(seed r3.Vec)

	// push appends p to the given half. It returns false when the half is
	// full and p was not stored.
	push(half int, p r3.Vec) bool

	// points returns a fresh slice holding half 0 reversed, the seed and
	// half 1, along with the index of the seed in it.
	points() ([]r3.Vec, int)
}

// growBuffer keeps each half in its own slice and never fills up.
type growBuffer struct {
	seed   r3.Vec
	halves [2][]r3.Vec
}

func (b *growBuffer) reset(seed r3.Vec) {
	b.seed = seed
	b.halves[0] = b.halves[0][:0]
	b.halves[1] = b.halves[1][:0]
}

func (b *growBuffer) push(half int, p r3.Vec) bool {
	b.halves[half] = append(b.halves[half], p)
	return true
}

func (b *growBuffer) points() ([]r3.Vec, int) {
	back, fwd := b.halves[0], b.halves[1]
	out := make([]r3.Vec, 0, len(back)+1+len(fwd))
	for i := len(back) - 1; i >= 0; i-- {
		out = append(out, back[i])
	}
	out = append(out, b.seed)
	out = append(out, fwd...)
	return out, len(back)
}

// boundBuffer is a fixed array with the seed in the middle. Each half is
// written outward from the seed until it reaches its end of the array.
type boundBuffer struct {
	data   []r3.Vec
	mid    int
	lo, hi int
}

func newBoundBuffer(capacity int) *boundBuffer {
	return &boundBuffer{data: make([]r3.Vec, capacity), mid: (capacity - 1) / 2}
}

func (b *boundBuffer) reset(seed r3.Vec) {
	b.lo, b.hi = b.mid, b.mid
	b.data[b.mid] = seed
}

func (b *boundBuffer) push(half int, p r3.Vec) bool {
	if half == 0 {
		if b.lo == 0 {
			return false
		}
		b.lo--
		b.data[b.lo] = p
		return true
	}
	if b.hi == len(b.data)-1 {
		return false
	}
	b.hi++
	b.data[b.hi] = p
	return true
}

func (b *boundBuffer) points() ([]r3.Vec, int) {
	out := make([]r3.Vec, b.hi-b.lo+1)
	copy(out, b.data[b.lo:b.hi+1])
	return out, b.mid - b.lo
}
