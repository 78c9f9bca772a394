package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Frame is one captured image awaiting inference.
type Frame struct {
	ID       string
	Image    image.Image
	Captured time.Time
}

func NewFrame(img image.Image) Frame {
	return Frame{
		ID:       uuid.NewString(),
		Image:    img,
		Captured: time.Now(),
	}
}

// Worker is a single-slot mailbox in front of one inference goroutine. A
// frame published while the previous one is still unconsumed replaces it, so
// the consumer always sees the most recent frame and nothing queues up.
type Worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	closed bool

	published atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
}

type WorkerStats struct {
	Published uint64 `json:"published"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
}

func NewWorker() *Worker {
	w := &Worker{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Publish never blocks. It returns false once the worker is stopped.
func (w *Worker) Publish(frame Frame) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	if w.frame != nil {
		w.dropped.Inc()
	}
	w.frame = &frame
	w.published.Inc()
	w.cond.Signal()
	return true
}

func (w *Worker) next() (Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.frame == nil && !w.closed {
		w.cond.Wait()
	}
	if w.closed {
		return Frame{}, false
	}

	frame := *w.frame
	w.frame = nil
	return frame, true
}

// Run consumes frames until Stop is called or ctx is done. fn runs on the
// calling goroutine, one frame at a time.
func (w *Worker) Run(ctx context.Context, fn func(Frame)) error {
	stop := context.AfterFunc(ctx, w.Stop)
	defer stop()

	for {
		frame, ok := w.next()
		if !ok {
			return ctx.Err()
		}
		fn(frame)
		w.processed.Inc()
	}
}

// Stop wakes the consumer and makes later Publish calls no-ops. A pending
// frame is discarded.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.frame = nil
	w.cond.Broadcast()
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Published: w.published.Load(),
		Processed: w.processed.Load(),
		Dropped:   w.dropped.Load(),
	}
}
