package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/queue"
)

func TestQueue_PushPop_FIFO(t *testing.T) {
	q := queue.New[int](4, queue.DropNewest)
	for i := 1; i <= 3; i++ {
		require.True(t, q.TryPush(i))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		v, ok := q.Pop(ctx)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueue_DropNewest_OnOverflow(t *testing.T) {
	q := queue.New[int](2, queue.DropNewest)
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	assert.False(t, q.TryPush(3)) // dropped, queue stays [1,2]
	assert.EqualValues(t, 1, q.OverflowCount())

	ctx := context.Background()
	v, _ := q.Pop(ctx)
	assert.Equal(t, 1, v)
}

func TestQueue_DropOldest_OnOverflow(t *testing.T) {
	q := queue.New[int](2, queue.DropOldest)
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	assert.True(t, q.TryPush(3)) // 1 is dropped, 3 enqueued
	assert.EqualValues(t, 1, q.OverflowCount())

	ctx := context.Background()
	v, _ := q.Pop(ctx)
	assert.Equal(t, 2, v)
	v, _ = q.Pop(ctx)
	assert.Equal(t, 3, v)
}

func TestQueue_Pop_BlocksUntilPush(t *testing.T) {
	q := queue.New[int](2, queue.DropNewest)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		v, _ := q.Pop(ctx)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.TryPush(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after push")
	}
}

func TestQueue_Pop_CancelledContext(t *testing.T) {
	q := queue.New[int](2, queue.DropNewest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

// cloneableInt is a Cloner[T] wrapper used to exercise Distributor.
type cloneableInt int

func (c cloneableInt) Clone() cloneableInt { return c }

func TestDistributor_FansOutToAllQueues(t *testing.T) {
	d := queue.NewDistributor[cloneableInt]()
	q1 := queue.New[cloneableInt](4, queue.DropNewest)
	q2 := queue.New[cloneableInt](4, queue.DropNewest)
	d.Register(q1)
	d.Register(q2)

	rejected := d.Push(cloneableInt(7))
	assert.Equal(t, 0, rejected)

	ctx := context.Background()
	v1, _ := q1.Pop(ctx)
	v2, _ := q2.Pop(ctx)
	assert.Equal(t, cloneableInt(7), v1)
	assert.Equal(t, cloneableInt(7), v2)
}

func TestDistributor_CountsRejections(t *testing.T) {
	d := queue.NewDistributor[cloneableInt]()
	full := queue.New[cloneableInt](1, queue.DropNewest)
	full.TryPush(1)
	d.Register(full)

	rejected := d.Push(cloneableInt(2))
	assert.Equal(t, 1, rejected)
}
