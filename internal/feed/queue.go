package feed

import "sync/atomic"

// Queue is a bounded frame buffer between the feed and the dispatch worker.
// When it is full the oldest frame is discarded: a stale activation vector
// has no value once a newer one exists.
type Queue struct {
	ch      chan []float64
	dropped atomic.Uint64
}

// NewQueue creates a Queue holding at most size frames (minimum 1).
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan []float64, size)}
}

// Push enqueues vector, evicting the oldest frame when full. Push never
// blocks. It is meant for a single producer; with several producers the
// eviction is still bounded but may drop more than one frame.
func (q *Queue) Push(vector []float64) {
	for {
		select {
		case q.ch <- vector:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// C returns the receive side consumed by the dispatch worker.
func (q *Queue) C() <-chan []float64 { return q.ch }

// Len returns the number of queued frames.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns how many frames were evicted.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
