package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func px(v float64) r3.Vec { return r3.Vec{X: v} }

func TestGrowBuffer(t *testing.T) {
	b := &growBuffer{}
	b.reset(px(0))
	for i := 1; i <= 3; i++ {
		assert.True(t, b.push(0, px(-float64(i))))
		assert.True(t, b.push(1, px(float64(i))))
	}
	assert.True(t, b.push(1, px(4)))

	pts, seed := b.points()
	assert.Equal(t, []r3.Vec{px(-3), px(-2), px(-1), px(0), px(1), px(2), px(3), px(4)}, pts)
	assert.Equal(t, 3, seed)

	// Reset clears both halves and the result does not alias the buffer.
	b.reset(px(10))
	pts2, seed2 := b.points()
	assert.Equal(t, []r3.Vec{px(10)}, pts2)
	assert.Equal(t, 0, seed2)
	assert.Equal(t, px(-3), pts[0])
}

func TestBoundBuffer(t *testing.T) {
	b := newBoundBuffer(6)
	b.reset(px(0))

	// Capacity 6 leaves two slots before the seed and three after it.
	assert.True(t, b.push(0, px(-1)))
	assert.True(t, b.push(0, px(-2)))
	assert.False(t, b.push(0, px(-3)))
	for i := 1; i <= 3; i++ {
		assert.True(t, b.push(1, px(float64(i))))
	}
	assert.False(t, b.push(1, px(4)))

	pts, seed := b.points()
	assert.Equal(t, []r3.Vec{px(-2), px(-1), px(0), px(1), px(2), px(3)}, pts)
	assert.Equal(t, 2, seed)

	b.reset(px(5))
	assert.True(t, b.push(1, px(6)))
	pts, seed = b.points()
	assert.Equal(t, []r3.Vec{px(5), px(6)}, pts)
	assert.Equal(t, 0, seed)
}
