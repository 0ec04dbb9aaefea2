package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testBlock(id int) Block {
	return Block{float32(id)}
}

func TestQueueDropsBeyondCapacity(t *testing.T) {
	const capacity = 5
	q := NewQueue(capacity)

	for i := 0; i < 12; i++ {
		accepted := q.Enqueue(testBlock(i))
		if i < capacity && !accepted {
			t.Errorf("Expected block %d to be accepted", i)
		}
		if i >= capacity && accepted {
			t.Errorf("Expected block %d to be dropped", i)
		}
		if q.Len() > capacity {
			t.Fatalf("Queue length %d exceeds capacity %d", q.Len(), capacity)
		}
	}

	if q.Dropped() != 7 {
		t.Errorf("Expected 7 dropped blocks, got %d", q.Dropped())
	}

	ctx := context.Background()
	for i := 0; i < capacity; i++ {
		b, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if int(b[0]) != i {
			t.Errorf("Expected block %d, got %d", i, int(b[0]))
		}
	}
}

func TestQueueDropsOnlyWhileFull(t *testing.T) {
	q := NewQueue(3)
	ctx := context.Background()

	var accepted []int
	offer := func(id int) {
		if q.Enqueue(testBlock(id)) {
			accepted = append(accepted, id)
		}
	}

	offer(0)
	offer(1)
	offer(2)
	offer(3) // full: dropped

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	offer(4)
	offer(5)
	offer(6) // full again: dropped

	want := []int{0, 1, 2, 4, 5}
	if len(accepted) != len(want) {
		t.Fatalf("Expected accepted %v, got %v", want, accepted)
	}
	for i := range want {
		if accepted[i] != want[i] {
			t.Errorf("Expected accepted %v, got %v", want, accepted)
			break
		}
	}

	for _, id := range []int{2, 4, 5} {
		b, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if int(b[0]) != id {
			t.Errorf("Expected block %d, got %d", id, int(b[0]))
		}
	}

	stats := q.Stats()
	if stats.Enqueued != 5 || stats.Dropped != 2 {
		t.Errorf("Expected 5 enqueued / 2 dropped, got %d / %d", stats.Enqueued, stats.Dropped)
	}
}

func TestQueueDequeueBlocksUntilAvailable(t *testing.T) {
	q := NewQueue(2)

	var wg sync.WaitGroup
	wg.Add(1)
	var got Block
	go func() {
		defer wg.Done()
		b, err := q.Dequeue(context.Background())
		if err != nil {
			t.Errorf("Dequeue failed: %v", err)
			return
		}
		got = b
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(testBlock(42))
	wg.Wait()

	if len(got) != 1 || got[0] != 42 {
		t.Errorf("Expected block 42, got %v", got)
	}
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestQueueCloseDrainsThenReports(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(testBlock(1))
	q.Enqueue(testBlock(2))
	q.Close()

	if q.Enqueue(testBlock(3)) {
		t.Error("Expected enqueue after close to be dropped")
	}

	ctx := context.Background()
	for _, id := range []int{1, 2} {
		b, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if int(b[0]) != id {
			t.Errorf("Expected block %d, got %d", id, int(b[0]))
		}
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue(1)
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			q.Enqueue(testBlock(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked with no consumer")
	}

	if q.Dropped() != 999 {
		t.Errorf("Expected 999 dropped blocks, got %d", q.Dropped())
	}
}
