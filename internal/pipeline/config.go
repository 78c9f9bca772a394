package pipeline

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/vision-pipeline/internal/postprocess"
)

var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config is fixed at executor construction.
type Config struct {
	// Threshold is the detection confidence cutoff; a candidate must exceed it.
	Threshold float32
	// NumThreads is the worker count of the CPU fallback.
	NumThreads int
	// MaxResults caps the number of boxes reported per frame.
	MaxResults int
	// IoUThreshold is the overlap at which non-max suppression merges boxes.
	IoUThreshold float32
	// CPUOnly skips the accelerated execution provider.
	CPUOnly bool
}

func DefaultConfig() Config {
	return Config{
		Threshold:    postprocess.DefaultThreshold,
		NumThreads:   2,
		MaxResults:   postprocess.DefaultMaxResults,
		IoUThreshold: postprocess.DefaultIoUThreshold,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, c.Threshold)
	case c.IoUThreshold <= 0 || c.IoUThreshold > 1:
		return fmt.Errorf("%w: iou threshold %v outside (0,1]", ErrInvalidConfig, c.IoUThreshold)
	case c.NumThreads < 1:
		return fmt.Errorf("%w: num threads must be positive, got %d", ErrInvalidConfig, c.NumThreads)
	case c.MaxResults < 1:
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidConfig, c.MaxResults)
	}
	return nil
}
