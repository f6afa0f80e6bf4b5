package engine

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// resolveShape turns a declared input shape into the concrete shape used
// for a single prediction: the leading batch dimension becomes one and the
// remaining dimensions must multiply out to InputSize². Both the flat
// layout (1×784) and the volume layout (1×28×28×1, or channel-first) pass;
// anything else is not a digit classifier we can feed.
func resolveShape(declared []int64) ([]int64, error) {
	if len(declared) < 2 {
		return nil, fmt.Errorf("shape %v has no batch dimension", declared)
	}
	shape := make([]int64, len(declared))
	copy(shape, declared)
	if shape[0] <= 0 {
		shape[0] = 1
	}
	if shape[0] != 1 {
		return nil, fmt.Errorf("shape %v wants batch size %d, can only feed 1", declared, shape[0])
	}
	for i, d := range shape[1:] {
		if d <= 0 {
			return nil, fmt.Errorf("shape %v has dynamic dimension at index %d", declared, i+1)
		}
	}
	if n := elementCount(shape); n != InputSize*InputSize {
		return nil, fmt.Errorf("shape %v holds %d elements, want %d", declared, n, InputSize*InputSize)
	}
	return shape, nil
}

// resolveBatch replaces dynamic dimensions with one. Used for output
// shapes, where only the batch is ever dynamic in practice.
func resolveBatch(declared []int64) []int64 {
	shape := make([]int64, len(declared))
	copy(shape, declared)
	for i, d := range shape {
		if d <= 0 {
			shape[i] = 1
		}
	}
	return shape
}

func elementCount(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// tensorize converts a raster image into the network's input buffer:
// bilinear downsample to InputSize×InputSize, grayscale, intensities
// normalized to [0,1]. The buffer is row-major and matches both the flat
// and the single-channel volume layout; shape only validates the element
// count here, the concrete dimensions travel with the network handle.
func tensorize(img image.Image, shape []int64) ([]float32, error) {
	want := elementCount(shape)
	if want != InputSize*InputSize {
		return nil, fmt.Errorf("network wants %d input elements, can only produce %d",
			want, InputSize*InputSize)
	}

	resized := resize.Resize(InputSize, InputSize, img, resize.Bilinear)
	bounds := resized.Bounds()
	data := make([]float32, 0, InputSize*InputSize)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			gray := 0.299*float32(r>>8) + 0.587*float32(g>>8) + 0.114*float32(b>>8)
			data = append(data, gray/255)
		}
	}
	if len(data) != want {
		return nil, fmt.Errorf("produced %d elements, want %d", len(data), want)
	}
	return data, nil
}
