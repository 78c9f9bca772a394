// Package pipeline runs frames through a model backend and reports the
// decoded results to a listener.
package pipeline

import (
	"image"
	"time"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/preprocess"
	"github.com/sirupsen/logrus"
)

// Executor is one loaded model variant. Process is safe to call concurrently
// with Close; after Close returns no further result is delivered.
type Executor interface {
	Process(frame image.Image)
	Close() error
	Kind() model.Kind
}

// Assets are the opaque inputs of one model instantiation.
type Assets struct {
	Model  []byte
	Labels []string
}

// infer measures from preprocessing through the end of the backend run;
// postprocessing is not part of the reported time.
func infer(backend *model.Backend, shape model.TensorShape, frame image.Image) ([]float32, time.Duration, error) {
	start := time.Now()
	input := preprocess.Tensor(frame, preprocess.OptionsFor(shape))
	output, err := backend.Run(input)
	return output, time.Since(start), err
}

func setup(kind model.Kind, assets Assets, cfg Config, log logrus.FieldLogger) (*model.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return model.Setup(assets.Model, kind, model.SetupOptions{
		NumThreads: cfg.NumThreads,
		CPUOnly:    cfg.CPUOnly,
		Log:        log,
	})
}

func componentLogger(log logrus.FieldLogger, kind model.Kind) logrus.FieldLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{"component": "pipeline", "model": kind.String()})
}
