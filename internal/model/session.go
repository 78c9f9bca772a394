package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// InitRuntime initializes the ONNX Runtime environment once per process.
// An empty libraryPath keeps the library's default lookup.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type SetupOptions struct {
	// NumThreads is the intra-op worker count of the CPU fallback.
	NumThreads int
	// CPUOnly skips the accelerated execution provider.
	CPUOnly bool
	Log     logrus.FieldLogger
}

// Setup loads a model blob and derives its shape metadata. An accelerated
// execution provider is tried first; when the device has none the model is
// loaded on the CPU with opts.NumThreads workers. Every failure wraps
// ErrModelLoad.
func Setup(modelBytes []byte, kind Kind, opts SetupOptions) (*Backend, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(modelBytes) == 0 {
		return nil, fmt.Errorf("%w: empty model", ErrModelLoad)
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(modelBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read tensor info: %w", ErrModelLoad, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model declares %d inputs and %d outputs", ErrModelLoad, len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat || out.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: only float32 tensors are supported, got %v -> %v", ErrModelLoad, in.DataType, out.DataType)
	}

	shape := ParseShape(kind, in.Dimensions, out.Dimensions)
	if !shape.Ready(kind) {
		return nil, fmt.Errorf("%w: incomplete %s shape, input %v output %v", ErrModelLoad, kind, in.Dimensions, out.Dimensions)
	}
	inputDims, err := fixedDims(in.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: input %q: %w", ErrModelLoad, in.Name, err)
	}
	outputDims, err := fixedDims(out.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: output %q: %w", ErrModelLoad, out.Name, err)
	}

	log = log.WithFields(logrus.Fields{"kind": kind.String(), "input": inputDims, "output": outputDims})

	if !opts.CPUOnly {
		session, err := newORTSession(modelBytes, in.Name, out.Name, inputDims, outputDims, sessionConfig{cuda: true})
		if err == nil {
			log.Info("model loaded on accelerated execution provider")
			b := NewBackend(kind, shape, session)
			b.accelerated = true
			return b, nil
		}
		log.WithError(err).Debug("accelerated execution provider unavailable, falling back to CPU")
	}

	session, err := newORTSession(modelBytes, in.Name, out.Name, inputDims, outputDims, sessionConfig{threads: opts.NumThreads})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	log.WithField("threads", opts.NumThreads).Info("model loaded on CPU")
	return NewBackend(kind, shape, session), nil
}

// fixedDims pins a dynamic batch dimension to 1; any other dynamic dimension
// cannot be backed by a preallocated tensor.
func fixedDims(dims ort.Shape) (ort.Shape, error) {
	fixed := dims.Clone()
	for i, d := range fixed {
		if d > 0 {
			continue
		}
		if i == 0 {
			fixed[0] = 1
			continue
		}
		return nil, errors.New("dynamic dimension " + dims.String())
	}
	return fixed, nil
}

type sessionConfig struct {
	cuda    bool
	threads int
}

type ortSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newORTSession(
	modelBytes []byte,
	inputName, outputName string,
	inputDims, outputDims ort.Shape,
	cfg sessionConfig,
) (*ortSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.cuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create CUDA options: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("failed to enable CUDA: %w", err)
		}
	} else if cfg.threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.threads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputDims)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputDims)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(modelBytes,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortSession{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

func (s *ortSession) Run(input []float32) ([]float32, error) {
	copy(s.input.GetData(), input)

	if err := s.session.Run(); err != nil {
		return nil, err
	}

	data := s.output.GetData()
	output := make([]float32, len(data))
	copy(output, data)
	return output, nil
}

func (s *ortSession) Destroy() error {
	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
	}
	if s.input != nil {
		errs = append(errs, s.input.Destroy())
	}
	if s.output != nil {
		errs = append(errs, s.output.Destroy())
	}
	return errors.Join(errs...)
}
