package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(q *Queue) []int64 {
	var out []int64
	for id := range q.InOrder() {
		out = append(out, id)
	}
	return out
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	q.Enqueue(10)
	q.Enqueue(7)
	q.Enqueue(42)

	require.Equal(t, 3, q.Len())
	require.Equal(t, []int64{10, 7, 42}, collect(q))

	p, ok := q.PositionOf(10)
	require.True(t, ok)
	require.Equal(t, 0, p)

	p, _ = q.PositionOf(42)
	require.Equal(t, 2, p)
}

func TestEnqueueIdempotent(t *testing.T) {
	q := New()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(1) // no-op: não duplica nem reordena

	require.Equal(t, 2, q.Len())
	require.Equal(t, []int64{1, 2}, collect(q))
}

func TestRemoveFront(t *testing.T) {
	q := New()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	q.Remove(1)
	require.Equal(t, []int64{2, 3}, collect(q))

	p, ok := q.PositionOf(2)
	require.True(t, ok)
	require.Equal(t, 0, p)
}

func TestRemoveMiddleKeepsPositions(t *testing.T) {
	q := New()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	q.Enqueue(4)

	q.Remove(2)
	require.Equal(t, 3, q.Len())
	require.Equal(t, []int64{1, 3, 4}, collect(q))

	p, _ := q.PositionOf(3)
	require.Equal(t, 1, p)
	p, _ = q.PositionOf(4)
	require.Equal(t, 2, p)
}

func TestRemoveRedundant(t *testing.T) {
	q := New()
	q.Enqueue(1)

	q.Remove(99) // ausente: no-op
	q.Remove(1)
	q.Remove(1) // já removido: no-op

	require.Equal(t, 0, q.Len())
	require.False(t, q.Contains(1))
	_, ok := q.PositionOf(1)
	require.False(t, ok)
}

func TestHeadSkipsTombstones(t *testing.T) {
	q := New()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	q.Remove(2) // tombstone no meio
	q.Remove(1) // cabeça avança por cima do tombstone

	require.Equal(t, []int64{3}, collect(q))
	p, ok := q.PositionOf(3)
	require.True(t, ok)
	require.Equal(t, 0, p)
}

func TestInOrderRestartable(t *testing.T) {
	q := New()
	q.Enqueue(1)
	q.Enqueue(2)

	seq := q.InOrder()
	require.Equal(t, []int64{1, 2}, collectSeq(seq))
	// segunda passada produz o mesmo resultado
	require.Equal(t, []int64{1, 2}, collectSeq(seq))
}

func TestRemoveDuringIteration(t *testing.T) {
	q := New()
	for i := int64(0); i < 5; i++ {
		q.Enqueue(i)
	}

	var seen []int64
	for id := range q.InOrder() {
		seen = append(seen, id)
		q.Remove(id)
	}
	require.Equal(t, []int64{0, 1, 2, 3, 4}, seen)
	require.Equal(t, 0, q.Len())
}

func TestCompaction(t *testing.T) {
	q := New()
	for i := int64(0); i < 200; i++ {
		q.Enqueue(i)
	}
	for i := int64(0); i < 150; i++ {
		q.Remove(i)
	}

	require.Equal(t, 50, q.Len())
	require.Equal(t, []int64{150}, collect(q)[:1])
	p, _ := q.PositionOf(199)
	require.Equal(t, 49, p)
}

func collectSeq(seq func(yield func(int64) bool)) []int64 {
	var out []int64
	for id := range seq {
		out = append(out, id)
	}
	return out
}
