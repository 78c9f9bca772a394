package pipeline

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/sirupsen/logrus"
)

var ErrUnknownKind = errors.New("unknown model kind")

// OpenFunc instantiates the executor for one model variant.
type OpenFunc func(kind model.Kind) (Executor, error)

// NewOpenFunc opens detectors and classifiers from preloaded assets.
func NewOpenFunc(assets map[model.Kind]Assets, listener Listener, cfg Config, log logrus.FieldLogger) OpenFunc {
	return func(kind model.Kind) (Executor, error) {
		a, ok := assets[kind]
		if !ok {
			return nil, fmt.Errorf("%w: no assets for %s", ErrUnknownKind, kind)
		}
		switch kind {
		case model.KindDetection:
			return OpenDetector(a, listener, cfg, log)
		case model.KindClassification:
			return OpenClassifier(a, listener, cfg, log)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Coordinator holds the active executor and swaps it at runtime. The old
// executor is always closed before the next one is opened, so at most one
// model is loaded at a time.
type Coordinator struct {
	switchMu sync.Mutex

	mu      sync.RWMutex
	current Executor
	kind    model.Kind

	open OpenFunc
	log  logrus.FieldLogger
}

func NewCoordinator(open OpenFunc, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		open: open,
		log:  log.WithField("component", "coordinator"),
	}
}

// Process forwards the frame to the active executor. A frame racing a switch
// either completes on the old executor before its Close returns or is
// dropped by the closed executor.
func (c *Coordinator) Process(frame image.Image) {
	c.mu.RLock()
	exec := c.current
	c.mu.RUnlock()

	if exec == nil {
		return
	}
	exec.Process(frame)
}

// Current reports the active variant; ok is false when no model is loaded.
func (c *Coordinator) Current() (kind model.Kind, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return c.kind, false
	}
	return c.current.Kind(), true
}

// Switch closes the active executor and opens kind. When opening fails no
// model stays loaded.
func (c *Coordinator) Switch(kind model.Kind) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return c.switchLocked(kind)
}

// Toggle flips between detection and classification. Concurrent toggles
// alternate, each one seeing the result of the previous.
func (c *Coordinator) Toggle() (model.Kind, error) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	kind, _ := c.Current()
	next := model.KindDetection
	if kind == model.KindDetection {
		next = model.KindClassification
	}
	return next, c.switchLocked(next)
}

// switchLocked requires switchMu.
func (c *Coordinator) switchLocked(kind model.Kind) error {
	c.closeCurrent()

	next, err := c.open(kind)
	if err != nil {
		return fmt.Errorf("failed to open %s model: %w", kind, err)
	}

	c.mu.Lock()
	c.current = next
	c.kind = kind
	c.mu.Unlock()

	c.log.WithField("model", kind.String()).Info("model switched")
	return nil
}

func (c *Coordinator) Close() error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return c.closeCurrent()
}

func (c *Coordinator) closeCurrent() error {
	c.mu.Lock()
	old := c.current
	c.current = nil
	c.mu.Unlock()

	if old == nil {
		return nil
	}
	if err := old.Close(); err != nil {
		c.log.WithError(err).WithField("model", old.Kind().String()).Warn("failed to close model")
		return err
	}
	return nil
}
