package pipeline

import (
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
	"go.uber.org/atomic"
)

// Listener receives results on the inference goroutine. Implementations must
// return quickly and hand off to their own goroutine when they need a
// different execution context.
type Listener interface {
	OnDetect(detections []postprocess.Detection, elapsed time.Duration)
	OnClassify(category postprocess.Category, elapsed time.Duration)
	OnEmpty()
}

type nopListener struct{}

func (nopListener) OnDetect([]postprocess.Detection, time.Duration) {}
func (nopListener) OnClassify(postprocess.Category, time.Duration)  {}
func (nopListener) OnEmpty()                                         {}

// Result is one delivery as seen through a ChannelListener.
type Result struct {
	Kind       model.Kind
	Detections []postprocess.Detection
	Category   *postprocess.Category
	Elapsed    time.Duration
	Empty      bool
}

// ChannelListener turns deliveries into Results on a buffered channel. Sends
// never block: when the buffer is full the result is dropped.
type ChannelListener struct {
	results chan Result
	dropped atomic.Uint64
}

var _ Listener = (*ChannelListener)(nil)

func NewChannelListener(size int) *ChannelListener {
	return &ChannelListener{results: make(chan Result, size)}
}

func (l *ChannelListener) Results() <-chan Result {
	return l.results
}

// Dropped counts results discarded because the channel was full.
func (l *ChannelListener) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *ChannelListener) OnDetect(detections []postprocess.Detection, elapsed time.Duration) {
	l.send(Result{Kind: model.KindDetection, Detections: detections, Elapsed: elapsed})
}

func (l *ChannelListener) OnClassify(category postprocess.Category, elapsed time.Duration) {
	l.send(Result{Kind: model.KindClassification, Category: &category, Elapsed: elapsed})
}

func (l *ChannelListener) OnEmpty() {
	l.send(Result{Empty: true})
}

func (l *ChannelListener) send(r Result) {
	select {
	case l.results <- r:
	default:
		l.dropped.Inc()
	}
}
