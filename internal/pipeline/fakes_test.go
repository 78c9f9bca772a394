package pipeline

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
	"go.uber.org/atomic"
)

type fakeSession struct {
	output    []float32
	err       error
	delay     time.Duration
	runs      atomic.Int64
	destroyed atomic.Bool
}

func (s *fakeSession) Run(input []float32) ([]float32, error) {
	if s.destroyed.Load() {
		panic("run on destroyed session")
	}
	s.runs.Inc()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float32, len(s.output))
	copy(out, s.output)
	return out, nil
}

func (s *fakeSession) Destroy() error {
	s.destroyed.Store(true)
	return nil
}

type delivery struct {
	detections []postprocess.Detection
	category   *postprocess.Category
	elapsed    time.Duration
	empty      bool
}

type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
	onDeliver  func()
}

func (r *recorder) add(d delivery) {
	if r.onDeliver != nil {
		r.onDeliver()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *recorder) OnDetect(detections []postprocess.Detection, elapsed time.Duration) {
	r.add(delivery{detections: detections, elapsed: elapsed})
}

func (r *recorder) OnClassify(category postprocess.Category, elapsed time.Duration) {
	r.add(delivery{category: &category, elapsed: elapsed})
}

func (r *recorder) OnEmpty() {
	r.add(delivery{empty: true})
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.deliveries...)
}

// channelMajor lays candidates {cx, cy, w, h, scores...} out the way
// detection models emit them.
func channelMajor(candidates ...[]float32) []float32 {
	elements := len(candidates)
	channels := len(candidates[0])
	out := make([]float32, channels*elements)
	for c, values := range candidates {
		for j, v := range values {
			out[c+elements*j] = v
		}
	}
	return out
}

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

var (
	detShape = model.TensorShape{InputWidth: 4, InputHeight: 4, ChannelsFirst: true, OutputChannels: 6, OutputElements: 2}
	clsShape = model.TensorShape{InputWidth: 4, InputHeight: 4, OutputCategories: 3}
)
