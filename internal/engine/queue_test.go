package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerQueue_FIFO(t *testing.T) {
	q := newTriggerQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(Trigger{ID: id, Kind: TriggerUpgrade}))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTriggerQueue_Len(t *testing.T) {
	q := newTriggerQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(Trigger{ID: "1"})
	q.Enqueue(Trigger{ID: "2"})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestTriggerQueue_CloseRejectsAndSignals(t *testing.T) {
	q := newTriggerQueue()
	q.Enqueue(Trigger{ID: "pending"})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Trigger{ID: "late"}), "enqueue after close should return false")
	assert.False(t, q.Drained(), "pending trigger still queued")

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("closed queue did not signal")
	}

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())
}

func TestTriggerQueue_ConcurrentProducers(t *testing.T) {
	q := newTriggerQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Trigger{Kind: TriggerUpgrade})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
