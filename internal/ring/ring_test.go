package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilledOrder(t *testing.T) {
	q := NewFilled(4)
	assert.True(t, q.Full())
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, uint32(i), v)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestPushPopWraps(t *testing.T) {
	q := New(3)
	q.Push(1)
	q.Push(2)
	v, _ := q.Pop()
	assert.Equal(t, uint32(1), v)
	q.Push(3)
	q.Push(4)
	assert.True(t, q.Full())

	got := []uint32{}
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []uint32{2, 3, 4}, got)
}

func TestPushOnFullPanics(t *testing.T) {
	q := New(1)
	q.Push(1)
	assert.Panics(t, func() { q.Push(2) })
}
