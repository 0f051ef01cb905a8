package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNCounterValue(t *testing.T) {
	c := NewPNCounter()
	require.EqualValues(t, 0, c.Value())

	c.Increment(5)
	c.Decrement(2)
	assert.EqualValues(t, 3, c.Value())

	c.Decrement(4)
	assert.EqualValues(t, -1, c.Value())
}

func TestPNCounterMergeMaxCommutative(t *testing.T) {
	a := &PNCounter{P: 5, N: 2}
	b := &PNCounter{P: 3, N: 4}

	ab := a.Clone()
	ab.MergeMax(b)
	ba := b.Clone()
	ba.MergeMax(a)

	assert.Equal(t, ab, ba)
	assert.Equal(t, &PNCounter{P: 5, N: 4}, ab)
}

func TestPNCounterMergeMaxAssociative(t *testing.T) {
	a := &PNCounter{P: 1, N: 9}
	b := &PNCounter{P: 7, N: 3}
	c := &PNCounter{P: 4, N: 6}

	left := a.Clone()
	left.MergeMax(b)
	left.MergeMax(c)

	bc := b.Clone()
	bc.MergeMax(c)
	right := a.Clone()
	right.MergeMax(bc)

	assert.Equal(t, left, right)
}

func TestPNCounterMergeMaxIdempotent(t *testing.T) {
	a := &PNCounter{P: 8, N: 1}
	merged := a.Clone()
	merged.MergeMax(a)
	assert.Equal(t, a, merged)

	merged.MergeMax(a)
	assert.Equal(t, a, merged)
}

func TestPNCounterMergeSum(t *testing.T) {
	a := &PNCounter{P: 2, N: 1}
	b := &PNCounter{P: 3, N: 5}
	a.MergeSum(b)
	assert.Equal(t, &PNCounter{P: 5, N: 6}, a)
}

func TestPNCounterZero(t *testing.T) {
	c := &PNCounter{P: 9, N: 4}
	c.Zero()
	assert.Equal(t, NewPNCounter(), c)
}
