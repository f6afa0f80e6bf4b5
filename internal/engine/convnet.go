package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// untrainedSeed fixes the synthesized network's weights so repeated
// classifications within and across runs are reproducible.
const untrainedSeed int64 = 1

// convNet is the terminal step of the load chain: a freshly initialized,
// untrained network with the architecture the deployed artifact was
// trained with — two convolution+max-pool stages with 16 and 32 filters,
// a 64-unit dense layer and a 10-way softmax. Predictions are near-random;
// the point is that the engine stays usable without any artifact.
type convNet struct {
	conv1 convLayer
	conv2 convLayer
	fc1   denseLayer
	fc2   denseLayer
}

func newConvNet(seed int64) *convNet {
	rng := rand.New(rand.NewSource(seed))
	flat := 5 * 5 * 32 // 28 → conv 26 → pool 13 → conv 11 → pool 5
	return &convNet{
		conv1: newConvLayer(rng, 1, 16, 3),
		conv2: newConvLayer(rng, 16, 32, 3),
		fc1:   newDenseLayer(rng, flat, 64, true),
		fc2:   newDenseLayer(rng, 64, NumClasses, false),
	}
}

func (n *convNet) InputShape() []int64 {
	return []int64{1, InputSize, InputSize, 1}
}

func (n *convNet) Forward(input []float32) ([]float32, error) {
	if len(input) != InputSize*InputSize {
		return nil, fmt.Errorf("input has %d elements, want %d", len(input), InputSize*InputSize)
	}
	a, w, h := n.conv1.apply(input, InputSize, InputSize)
	a, w, h = maxPool2(a, w, h, n.conv1.out)
	a, w, h = n.conv2.apply(a, w, h)
	a, w, h = maxPool2(a, w, h, n.conv2.out)
	if w*h*n.conv2.out != n.fc1.in {
		return nil, fmt.Errorf("flattened %d activations, dense layer wants %d", w*h*n.conv2.out, n.fc1.in)
	}
	a = n.fc1.apply(a)
	a = n.fc2.apply(a)
	softmax(a)
	return a, nil
}

func (n *convNet) Close() {}

// convLayer is a valid-padding, stride-one convolution with ReLU.
// Activations are row-major height×width×channels.
type convLayer struct {
	in, out, k int
	w          []float32 // out × k × k × in
	b          []float32
}

func newConvLayer(rng *rand.Rand, in, out, k int) convLayer {
	w := make([]float32, out*k*k*in)
	scale := float32(math.Sqrt(2 / float64(in*k*k)))
	for i := range w {
		w[i] = float32(rng.NormFloat64()) * scale
	}
	return convLayer{in: in, out: out, k: k, w: w, b: make([]float32, out)}
}

func (l convLayer) apply(src []float32, w, h int) ([]float32, int, int) {
	ow, oh := w-l.k+1, h-l.k+1
	dst := make([]float32, ow*oh*l.out)
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			for f := 0; f < l.out; f++ {
				sum := l.b[f]
				wi := f * l.k * l.k * l.in
				for ky := 0; ky < l.k; ky++ {
					for kx := 0; kx < l.k; kx++ {
						si := ((y+ky)*w + x + kx) * l.in
						for c := 0; c < l.in; c++ {
							sum += src[si+c] * l.w[wi]
							wi++
						}
					}
				}
				if sum > 0 {
					dst[(y*ow+x)*l.out+f] = sum
				}
			}
		}
	}
	return dst, ow, oh
}

// maxPool2 applies a 2×2, stride-two max pool, truncating odd edges.
func maxPool2(src []float32, w, h, c int) ([]float32, int, int) {
	ow, oh := w/2, h/2
	dst := make([]float32, ow*oh*c)
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			for ch := 0; ch < c; ch++ {
				m := src[(2*y*w+2*x)*c+ch]
				if v := src[(2*y*w+2*x+1)*c+ch]; v > m {
					m = v
				}
				if v := src[((2*y+1)*w+2*x)*c+ch]; v > m {
					m = v
				}
				if v := src[((2*y+1)*w+2*x+1)*c+ch]; v > m {
					m = v
				}
				dst[(y*ow+x)*c+ch] = m
			}
		}
	}
	return dst, ow, oh
}

type denseLayer struct {
	in, out int
	w       []float32 // out × in
	b       []float32
	relu    bool
}

func newDenseLayer(rng *rand.Rand, in, out int, relu bool) denseLayer {
	w := make([]float32, out*in)
	scale := float32(math.Sqrt(2 / float64(in)))
	for i := range w {
		w[i] = float32(rng.NormFloat64()) * scale
	}
	return denseLayer{in: in, out: out, w: w, b: make([]float32, out), relu: relu}
}

func (l denseLayer) apply(src []float32) []float32 {
	dst := make([]float32, l.out)
	for o := 0; o < l.out; o++ {
		sum := l.b[o]
		row := l.w[o*l.in : (o+1)*l.in]
		for i, v := range src {
			sum += v * row[i]
		}
		if l.relu && sum < 0 {
			sum = 0
		}
		dst[o] = sum
	}
	return dst
}

// softmax normalizes v in place to a probability distribution.
func softmax(v []float32) {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float32
	for i, x := range v {
		e := float32(math.Exp(float64(x - max)))
		v[i] = e
		sum += e
	}
	for i := range v {
		v[i] /= sum
	}
}
