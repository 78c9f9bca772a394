package pipeline

import (
	"errors"
	"image"
	"sync"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
	"github.com/sirupsen/logrus"
)

// Detector runs an object detection model and reports at most
// Config.MaxResults suppressed boxes per frame.
type Detector struct {
	mu       sync.Mutex
	closed   bool
	backend  *model.Backend
	shape    model.TensorShape
	decoder  postprocess.Detector
	listener Listener
	log      logrus.FieldLogger
}

var _ Executor = (*Detector)(nil)

func NewDetector(backend *model.Backend, labels []string, listener Listener, cfg Config, log logrus.FieldLogger) *Detector {
	if listener == nil {
		listener = nopListener{}
	}
	return &Detector{
		backend: backend,
		shape:   backend.Shape(),
		decoder: postprocess.Detector{
			Labels:       labels,
			Threshold:    cfg.Threshold,
			IoUThreshold: cfg.IoUThreshold,
			MaxResults:   cfg.MaxResults,
		},
		listener: listener,
		log:      componentLogger(log, model.KindDetection),
	}
}

// OpenDetector loads the model and wraps it in a Detector.
func OpenDetector(assets Assets, listener Listener, cfg Config, log logrus.FieldLogger) (*Detector, error) {
	backend, err := setup(model.KindDetection, assets, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewDetector(backend, assets.Labels, listener, cfg, log), nil
}

func (d *Detector) Kind() model.Kind {
	return model.KindDetection
}

// Process skips the frame silently when the detector is closed or its shape
// metadata is incomplete. A failing frame is logged and produces no callback.
func (d *Detector) Process(frame image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || frame == nil || !d.shape.ReadyForDetection() {
		return
	}

	output, elapsed, err := infer(d.backend, d.shape, frame)
	if err != nil {
		if !errors.Is(err, model.ErrNotReady) {
			d.log.WithError(err).Warn("inference failed, skipping frame")
		}
		return
	}

	boxes, err := d.decoder.Process(output, d.shape.OutputChannels, d.shape.OutputElements)
	if err != nil {
		d.log.WithError(err).Warn("failed to decode detections, skipping frame")
		return
	}

	if len(boxes) == 0 {
		d.listener.OnEmpty()
		return
	}
	d.listener.OnDetect(boxes, elapsed)
}

// Close waits for an in-flight frame and releases the backend. It is
// idempotent.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.backend.Close()
}
