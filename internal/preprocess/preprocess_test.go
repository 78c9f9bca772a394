package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestTensorNormalization(t *testing.T) {
	frame := solid(17, 9, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	opts := Options{Width: 4, Height: 4, Mean: DefaultMean, StdDev: DefaultStdDev}

	tensor := Tensor(frame, opts)
	require.Len(t, tensor, 48)
	for i := 0; i < 16; i++ {
		require.InDelta(t, 1.0, tensor[i*3], 1e-6)
		require.InDelta(t, 0.0, tensor[i*3+1], 1e-6)
		require.InDelta(t, 0.2, tensor[i*3+2], 1e-6)
	}
}

func TestTensorLayout(t *testing.T) {
	// red pixel followed by a green one
	frame := image.NewRGBA(image.Rect(0, 0, 2, 1))
	frame.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	frame.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})

	hwc := Tensor(frame, Options{Width: 2, Height: 1, StdDev: 255})
	require.Equal(t, []float32{1, 0, 0, 0, 1, 0}, hwc)

	chw := Tensor(frame, Options{Width: 2, Height: 1, ChannelsFirst: true, StdDev: 255})
	require.Equal(t, []float32{1, 0, 0, 1, 0, 0}, chw)
}

func TestTensorGenericImage(t *testing.T) {
	frame := image.NewNRGBA(image.Rect(10, 10, 30, 20))
	for y := 10; y < 20; y++ {
		for x := 10; x < 30; x++ {
			frame.SetNRGBA(x, y, color.NRGBA{R: 102, G: 204, B: 0, A: 255})
		}
	}

	tensor := Tensor(frame, Options{Width: 3, Height: 2, ChannelsFirst: true, StdDev: 255})
	require.Len(t, tensor, 18)
	for i := 0; i < 6; i++ {
		require.InDelta(t, 0.4, tensor[i], 1e-6)
		require.InDelta(t, 0.8, tensor[6+i], 1e-6)
		require.InDelta(t, 0.0, tensor[12+i], 1e-6)
	}
}

func TestTensorIsDeterministic(t *testing.T) {
	frame := solid(32, 24, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	opts := OptionsFor(model.TensorShape{InputWidth: 8, InputHeight: 6, ChannelsFirst: true})

	require.Equal(t, Tensor(frame, opts), Tensor(frame, opts))
}

func TestTensorEmptyFrame(t *testing.T) {
	tensor := Tensor(image.NewRGBA(image.Rect(0, 0, 0, 0)), Options{Width: 2, Height: 2, StdDev: 255})
	require.Equal(t, make([]float32, 12), tensor)
}

func TestOptionsFor(t *testing.T) {
	opts := OptionsFor(model.TensorShape{InputWidth: 320, InputHeight: 240})
	require.Equal(t, Options{Width: 320, Height: 240, Mean: 0, StdDev: 255}, opts)
	require.Equal(t, 320*240*3, opts.Len())
}

func TestTensorFollowsDeclaredDims(t *testing.T) {
	// 4 wide, 2 tall; red encodes the position as 10x+y
	frame := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: uint8(10*x + y), A: 255})
		}
	}

	tests := []struct {
		name  string
		input []int64
		red   func(tensor []float32, row, col int) float32
	}{
		{
			name:  "channels first",
			input: []int64{1, 3, 2, 4},
			red:   func(tensor []float32, row, col int) float32 { return tensor[row*4+col] },
		},
		{
			name:  "channels last",
			input: []int64{1, 2, 4, 3},
			red:   func(tensor []float32, row, col int) float32 { return tensor[(row*4+col)*3] },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shape := model.ParseShape(model.KindClassification, tc.input, []int64{1, 5})
			require.Equal(t, 4, shape.InputWidth)
			require.Equal(t, 2, shape.InputHeight)

			opts := OptionsFor(shape)
			opts.StdDev = 1
			tensor := Tensor(frame, opts)
			require.Len(t, tensor, shape.InputLen())

			for row := 0; row < 2; row++ {
				for col := 0; col < 4; col++ {
					require.Equal(t, float32(10*col+row), tc.red(tensor, row, col), "row %d col %d", row, col)
				}
			}
		})
	}
}
