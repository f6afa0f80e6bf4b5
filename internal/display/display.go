// Package display turns a prediction set into renderable bars: arg-max
// selection, heatmap colors and proportional bar geometry. Everything here
// is a pure function of its input.
package display

import (
	"image"
	"image/color"
	"math"
)

// NumClasses matches the engine's ten digit classes.
const NumClasses = 10

// Prediction pairs a digit class with its probability.
type Prediction struct {
	Digit int
	Prob  float32
}

// Reset returns the zero-filled prediction set shown before any inference
// and after a clear.
func Reset() []Prediction {
	preds := make([]Prediction, NumClasses)
	for i := range preds {
		preds[i].Digit = i
	}
	return preds
}

// FromProbs pairs each class index with its probability.
func FromProbs(probs []float32) []Prediction {
	preds := make([]Prediction, len(probs))
	for i, p := range probs {
		preds[i] = Prediction{Digit: i, Prob: p}
	}
	return preds
}

// ArgMax returns the index of the entry with the highest probability, the
// first one when tied.
func ArgMax(preds []Prediction) int {
	best := 0
	for i, p := range preds {
		if p.Prob > preds[best].Prob {
			best = i
		}
	}
	return best
}

// Heatmap gradient: dark blue → cyan → green → yellow → red with
// breakpoints at 0.2/0.4/0.6/0.8. The first segment stays at hue 240 and
// only brightens; from 0.2 the hue falls linearly, 60° per segment,
// reaching red at 1. Both pieces agree at every breakpoint.
func heatmapHue(p float64) float64 {
	if p <= 0.2 {
		return 240
	}
	if p >= 1 {
		return 0
	}
	return 240 * (1 - (p-0.2)/0.8)
}

// heatmapValue ramps brightness across the dark-blue segment and is full
// beyond it.
func heatmapValue(p float64) float64 {
	if p >= 0.2 {
		return 1
	}
	if p < 0 {
		p = 0
	}
	return 0.4 + 3*p
}

// HeatmapColor maps a probability onto the heatmap gradient.
func HeatmapColor(p float32) color.RGBA {
	v := float64(p)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return hsvColor(heatmapHue(v), 1, heatmapValue(v))
}

// hsvColor converts hue in degrees with saturation and value in [0,1].
func hsvColor(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 0xFF,
	}
}

// Bar is one rendered probability bar.
type Bar struct {
	Digit int
	Prob  float32
	Rect  image.Rectangle
	Color color.RGBA
	// Best marks the arg-max entry.
	Best bool
}

// Layout computes one bottom-anchored bar per digit inside bounds, width
// shared evenly with a one-tenth gap, height proportional to probability.
func Layout(preds []Prediction, bounds image.Rectangle) []Bar {
	if len(preds) == 0 {
		return nil
	}
	best := ArgMax(preds)
	w := bounds.Dx() / len(preds)
	gap := w / 10
	bars := make([]Bar, len(preds))
	for i, p := range preds {
		prob := p.Prob
		if prob < 0 {
			prob = 0
		}
		if prob > 1 {
			prob = 1
		}
		h := int(float32(bounds.Dy()) * prob)
		x0 := bounds.Min.X + i*w
		bars[i] = Bar{
			Digit: p.Digit,
			Prob:  p.Prob,
			Rect:  image.Rect(x0+gap, bounds.Max.Y-h, x0+w-gap, bounds.Max.Y),
			Color: HeatmapColor(p.Prob),
			Best:  i == best,
		}
	}
	return bars
}
