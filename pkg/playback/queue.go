// Package playback buffers remote audio and renders it to the output device.
package playback

import (
	"sync"

	"github.com/chriscow/voicerelay-go/pkg/rtc"
)

// DefaultCapacity holds about five seconds of typical 20ms deltas.
const DefaultCapacity = 256

// Queue is a bounded FIFO of frames awaiting playback. When full, the oldest
// frame is dropped: stale real-time audio is worthless.
type Queue struct {
	mu       sync.Mutex
	frames   []*rtc.AudioFrame
	capacity int
	dropped  uint64
	ready    chan struct{}
}

// NewQueue returns a queue holding at most capacity frames.
// A non-positive capacity selects DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends frame and reports whether an older frame had to be dropped.
func (q *Queue) Push(frame *rtc.AudioFrame) (dropped bool) {
	q.mu.Lock()
	if len(q.frames) >= q.capacity {
		q.frames[0] = nil
		q.frames = q.frames[1:]
		q.dropped++
		dropped = true
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Pop removes the oldest frame.
func (q *Queue) Pop() (*rtc.AudioFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return f, true
}

// Clear discards every queued frame and returns how many were discarded.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	q.frames = nil
	return n
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns how many frames were discarded on overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Ready is signalled after a Push. A consumer must re-check Len after waking.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
