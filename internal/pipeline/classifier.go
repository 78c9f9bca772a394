package pipeline

import (
	"errors"
	"image"
	"sync"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
	"github.com/sirupsen/logrus"
)

// Classifier reports the single best category of every frame.
type Classifier struct {
	mu       sync.Mutex
	closed   bool
	backend  *model.Backend
	shape    model.TensorShape
	labels   []string
	listener Listener
	log      logrus.FieldLogger
}

var _ Executor = (*Classifier)(nil)

func NewClassifier(backend *model.Backend, labels []string, listener Listener, log logrus.FieldLogger) *Classifier {
	if listener == nil {
		listener = nopListener{}
	}
	return &Classifier{
		backend:  backend,
		shape:    backend.Shape(),
		labels:   labels,
		listener: listener,
		log:      componentLogger(log, model.KindClassification),
	}
}

func OpenClassifier(assets Assets, listener Listener, cfg Config, log logrus.FieldLogger) (*Classifier, error) {
	backend, err := setup(model.KindClassification, assets, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewClassifier(backend, assets.Labels, listener, log), nil
}

func (c *Classifier) Kind() model.Kind {
	return model.KindClassification
}

func (c *Classifier) Process(frame image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || frame == nil || !c.shape.ReadyForClassification() {
		return
	}

	output, elapsed, err := infer(c.backend, c.shape, frame)
	if err != nil {
		if !errors.Is(err, model.ErrNotReady) {
			c.log.WithError(err).Warn("inference failed, skipping frame")
		}
		return
	}

	n := min(len(output), c.shape.OutputCategories)
	category, ok := postprocess.Classify(output[:n], c.labels)
	if !ok {
		c.listener.OnEmpty()
		return
	}
	c.listener.OnClassify(category, elapsed)
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.backend.Close()
}
