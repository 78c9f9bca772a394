package model

import (
	"fmt"
	"sync"
)

// Session is a loaded model that maps one input tensor to one output tensor.
// Implementations are not required to be safe for concurrent use; Backend
// serializes every call.
type Session interface {
	Run(input []float32) ([]float32, error)
	Destroy() error
}

// Backend owns a session and the shape metadata derived from it. A single
// mutex guards the closed flag together with Run and Close, so Close waits for
// an in-flight Run and no Run starts after Close.
type Backend struct {
	mu          sync.Mutex
	session     Session
	shape       TensorShape
	kind        Kind
	accelerated bool
	closed      bool
}

// NewBackend wraps an already created session.
func NewBackend(kind Kind, shape TensorShape, session Session) *Backend {
	return &Backend{
		session: session,
		shape:   shape,
		kind:    kind,
	}
}

func (b *Backend) Kind() Kind {
	return b.kind
}

func (b *Backend) Shape() TensorShape {
	return b.shape
}

// Accelerated reports whether the session runs on an accelerated execution
// provider rather than the CPU fallback.
func (b *Backend) Accelerated() bool {
	return b.accelerated
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Run blocks until the model produced an output tensor. The returned slice is
// owned by the caller.
func (b *Backend) Run(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.session == nil || !b.shape.Ready(b.kind) {
		return nil, ErrNotReady
	}
	if want := b.shape.InputLen(); len(input) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInputSize, len(input), want)
	}

	output, err := b.session.Run(input)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return output, nil
}

// Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.session == nil {
		return nil
	}
	if err := b.session.Destroy(); err != nil {
		return fmt.Errorf("failed to release session: %w", err)
	}
	return nil
}
