package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained
var ErrQueueClosed = errors.New("audio queue closed")

// Queue is a fixed-capacity FIFO of audio blocks shared between exactly one
// producer (the capture callback) and one consumer (the processing loop).
// Enqueue never blocks: when the queue is full the new block is dropped.
type Queue struct {
	blocks chan Block
	done   chan struct{}
	once   sync.Once

	closed   atomic.Bool
	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

// QueueStats is a point-in-time view of queue counters
type QueueStats struct {
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
}

// NewQueue creates a queue holding at most capacity blocks
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		blocks: make(chan Block, capacity),
		done:   make(chan struct{}),
	}
}

// Enqueue offers a block without blocking. It reports whether the block was
// accepted; a false return means the queue was full (or closed) and the block
// was discarded.
func (q *Queue) Enqueue(b Block) bool {
	if q.closed.Load() {
		q.dropped.Add(1)
		return false
	}

	select {
	case q.blocks <- b:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dequeue waits for the next block in capture order. After Close it keeps
// returning buffered blocks until the queue is empty, then ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (Block, error) {
	select {
	case b := <-q.blocks:
		return b, nil
	default:
	}

	select {
	case b := <-q.blocks:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		select {
		case b := <-q.blocks:
			return b, nil
		default:
			return nil, ErrQueueClosed
		}
	}
}

// Close marks the end of input. Later Enqueue calls are dropped.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}

// Len returns the number of buffered blocks
func (q *Queue) Len() int {
	return len(q.blocks)
}

// Cap returns the fixed capacity
func (q *Queue) Cap() int {
	return cap(q.blocks)
}

// Dropped returns the number of blocks discarded so far
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Stats returns current queue counters
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Length:   q.Len(),
		Capacity: q.Cap(),
		Enqueued: q.enqueued.Load(),
		Dropped:  q.dropped.Load(),
	}
}
