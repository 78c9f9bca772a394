package model

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad = errors.New("model load failed")
	ErrNotReady  = errors.New("tensor shape not ready")
	ErrClosed    = errors.New("backend closed")
	ErrInputSize = errors.New("input tensor size mismatch")
)

// Kind selects which model variant a backend was loaded for.
type Kind int

const (
	KindDetection Kind = iota
	KindClassification
)

func (k Kind) String() string {
	switch k {
	case KindDetection:
		return "detect"
	case KindClassification:
		return "classify"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "detect", "detection":
		return KindDetection, nil
	case "classify", "classification":
		return KindClassification, nil
	}
	return 0, fmt.Errorf("unknown model kind %q", s)
}

// TensorShape is derived once from a loaded model. A zero field means the
// shape has not been populated yet.
type TensorShape struct {
	InputWidth    int
	InputHeight   int
	ChannelsFirst bool

	// detection: [batch, OutputChannels, OutputElements]
	OutputChannels int
	OutputElements int

	// classification: [batch, OutputCategories]
	OutputCategories int
}

const inputChannels = 3

func (s TensorShape) inputReady() bool {
	return s.InputWidth > 0 && s.InputHeight > 0
}

func (s TensorShape) ReadyForDetection() bool {
	return s.inputReady() && s.OutputChannels > 0 && s.OutputElements > 0
}

func (s TensorShape) ReadyForClassification() bool {
	return s.inputReady() && s.OutputCategories > 0
}

// Ready reports whether every field the given variant needs is non-zero.
func (s TensorShape) Ready(kind Kind) bool {
	if kind == KindClassification {
		return s.ReadyForClassification()
	}
	return s.ReadyForDetection()
}

// InputLen is the number of float32 values in one input tensor.
func (s TensorShape) InputLen() int {
	return s.InputWidth * s.InputHeight * inputChannels
}

// OutputLen is the number of float32 values in one output tensor.
func (s TensorShape) OutputLen(kind Kind) int {
	if kind == KindClassification {
		return s.OutputCategories
	}
	return s.OutputChannels * s.OutputElements
}

// ParseShape reads declared input and output dimensions. Image inputs are
// [batch, height, width, channels] or [batch, channels, height, width]; the
// input is treated as channel-first when the second dimension equals 3.
func ParseShape(kind Kind, input, output []int64) TensorShape {
	var s TensorShape
	if len(input) >= 3 {
		s.InputHeight = dim(input[1])
		s.InputWidth = dim(input[2])
		if input[1] == inputChannels && len(input) >= 4 {
			s.ChannelsFirst = true
			s.InputHeight = dim(input[2])
			s.InputWidth = dim(input[3])
		}
	}

	switch kind {
	case KindDetection:
		if len(output) >= 3 {
			s.OutputChannels = dim(output[1])
			s.OutputElements = dim(output[2])
		}
	case KindClassification:
		if len(output) >= 2 {
			s.OutputCategories = dim(output[1])
		}
	}
	return s
}

// dynamic dimensions are reported as -1
func dim(v int64) int {
	if v <= 0 {
		return 0
	}
	return int(v)
}
