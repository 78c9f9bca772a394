// Package preprocess turns camera frames into model input tensors.
package preprocess

import (
	"image"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/nfnt/resize"
)

const (
	DefaultMean   float32 = 0
	DefaultStdDev float32 = 255
)

type Options struct {
	Width         int
	Height        int
	ChannelsFirst bool
	Mean          float32
	StdDev        float32
}

// OptionsFor returns the default normalization for a model's input shape,
// mapping [0,255] to [0,1].
func OptionsFor(shape model.TensorShape) Options {
	return Options{
		Width:         shape.InputWidth,
		Height:        shape.InputHeight,
		ChannelsFirst: shape.ChannelsFirst,
		Mean:          DefaultMean,
		StdDev:        DefaultStdDev,
	}
}

// Len is the number of values Tensor produces.
func (o Options) Len() int {
	return o.Width * o.Height * 3
}

// Tensor stretches the frame to Width x Height (aspect ratio is not
// preserved) and normalizes every RGB value as (v - Mean) / StdDev. Pixels
// are written row by row, matching the [height][width] order of NCHW and
// NHWC inputs. The frame is only read.
func Tensor(frame image.Image, opts Options) []float32 {
	tensor := make([]float32, opts.Len())
	if opts.Width <= 0 || opts.Height <= 0 || frame.Bounds().Empty() {
		return tensor
	}
	stdDev := opts.StdDev
	if stdDev == 0 {
		stdDev = 1
	}

	resized := resize.Resize(uint(opts.Width), uint(opts.Height), frame, resize.NearestNeighbor)
	bounds := resized.Bounds()
	plane := opts.Width * opts.Height

	put := func(x, y int, r, g, b uint8) {
		rn := (float32(r) - opts.Mean) / stdDev
		gn := (float32(g) - opts.Mean) / stdDev
		bn := (float32(b) - opts.Mean) / stdDev

		pixelIndex := y*opts.Width + x
		if opts.ChannelsFirst {
			tensor[pixelIndex] = rn
			tensor[plane+pixelIndex] = gn
			tensor[2*plane+pixelIndex] = bn
			return
		}
		tensor[pixelIndex*3] = rn
		tensor[pixelIndex*3+1] = gn
		tensor[pixelIndex*3+2] = bn
	}

	if rgba, ok := resized.(*image.RGBA); ok {
		for y := 0; y < opts.Height; y++ {
			for x := 0; x < opts.Width; x++ {
				i := rgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				put(x, y, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
			}
		}
		return tensor
	}

	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			put(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return tensor
}
