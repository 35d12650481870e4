package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingInsertUntilFull(t *testing.T) {
	r := New[int](3)
	require.Equal(t, 3, r.Cap())

	require.NoError(t, r.Insert(1))
	require.NoError(t, r.Insert(2))
	assert.False(t, r.Full())
	require.NoError(t, r.Insert(3))
	assert.True(t, r.Full())

	err := r.Insert(4)
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, []int{1, 2, 3}, r.Values())
}

func TestRingEvictOldestAndInsert(t *testing.T) {
	r := New[string](3)
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, r.Insert(v))
	}

	assert.Equal(t, "a", r.EvictOldestAndInsert("d"))
	assert.Equal(t, "b", r.EvictOldestAndInsert("e"))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"c", "d", "e"}, r.Values())
}

func TestRingNegativeIndex(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 4; i++ {
		require.NoError(t, r.Insert(i))
	}
	r.EvictOldestAndInsert(5)

	assert.Equal(t, 2, r.At(0))
	assert.Equal(t, 3, r.At(1))
	assert.Equal(t, 5, r.At(-1))
	assert.Equal(t, 4, r.At(-2))
	assert.Equal(t, 2, r.At(-4))

	assert.Panics(t, func() { r.At(4) })
	assert.Panics(t, func() { r.At(-5) })
}

func TestRingDuplicatesKeptByPosition(t *testing.T) {
	r := New[int](3)
	for _, v := range []int{7, 7, 7} {
		require.NoError(t, r.Insert(v))
	}
	assert.Equal(t, 7, r.EvictOldestAndInsert(8))
	assert.Equal(t, []int{7, 7, 8}, r.Values())
}

func TestRingClampsCapacity(t *testing.T) {
	r := New[int](0)
	assert.Equal(t, 1, r.Cap())
	require.NoError(t, r.Insert(1))
	assert.Equal(t, 1, r.EvictOldestAndInsert(2))
	assert.Equal(t, 2, r.At(-1))
}

func TestRingClear(t *testing.T) {
	r := New[int](2)
	require.NoError(t, r.Insert(1))
	r.Clear()
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.Insert(2))
	assert.Equal(t, []int{2}, r.Values())
}
