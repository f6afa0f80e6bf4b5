// Package canvas implements the drawing surface: a fixed-size
// single-channel bitmap painted white-on-black with a round brush.
package canvas

import (
	"image"
	"image/color"
	"math"
)

const (
	// Size is the bitmap resolution, pixels per side.
	Size = 280
	// BrushRadius is the stroke radius in bitmap pixels.
	BrushRadius = 9
)

// Canvas turns pointer events into brush strokes on its bitmap. On stroke
// completion it hands a snapshot to the registered stroke callback, but
// only if something was painted since the last clear. Not safe for
// concurrent use; it belongs to the UI event loop.
type Canvas struct {
	img      *image.Gray
	scaleX   float64
	scaleY   float64
	stroking bool
	painted  bool
	lastX    float64
	lastY    float64
	onStroke func(snapshot *image.Gray)
	onClear  func()
}

func New() *Canvas {
	c := &Canvas{
		img:    image.NewGray(image.Rect(0, 0, Size, Size)),
		scaleX: 1,
		scaleY: 1,
	}
	c.fill(0)
	return c
}

// SetViewport declares the device size pointer coordinates arrive in, so
// they can be scaled into bitmap space. Zero or negative sizes are ignored.
func (c *Canvas) SetViewport(width, height float64) {
	if width > 0 && height > 0 {
		c.scaleX = Size / width
		c.scaleY = Size / height
	}
}

// OnStroke registers the snapshot consumer invoked on stroke completion.
func (c *Canvas) OnStroke(fn func(snapshot *image.Gray)) {
	c.onStroke = fn
}

// OnClear registers the callback invoked when the surface is cleared, so
// the host can reset displayed predictions without running inference.
func (c *Canvas) OnClear(fn func()) {
	c.onClear = fn
}

// Image exposes the live bitmap for rendering. Callers must not mutate it.
func (c *Canvas) Image() *image.Gray {
	return c.img
}

// PointerDown starts a stroke and paints the first dab, so a click with no
// movement still leaves a mark.
func (c *Canvas) PointerDown(x, y float64) {
	bx, by := x*c.scaleX, y*c.scaleY
	c.stroking = true
	c.lastX, c.lastY = bx, by
	c.stamp(bx, by)
	c.painted = true
}

// PointerMove extends the current stroke. Ignored when no stroke is open.
func (c *Canvas) PointerMove(x, y float64) {
	if !c.stroking {
		return
	}
	bx, by := x*c.scaleX, y*c.scaleY
	c.paintSegment(c.lastX, c.lastY, bx, by)
	c.lastX, c.lastY = bx, by
	c.painted = true
}

// PointerUp completes the current stroke. If anything was painted since
// the last clear, the stroke callback receives a snapshot of the bitmap.
// Pointer-leave is reported the same way.
func (c *Canvas) PointerUp() {
	if !c.stroking {
		return
	}
	c.stroking = false
	if c.painted && c.onStroke != nil {
		c.onStroke(c.Snapshot())
	}
}

// Clear resets the bitmap to solid black and notifies the clear callback.
// It never triggers the stroke callback.
func (c *Canvas) Clear() {
	c.fill(0)
	c.stroking = false
	c.painted = false
	if c.onClear != nil {
		c.onClear()
	}
}

// Snapshot returns a copy of the current bitmap.
func (c *Canvas) Snapshot() *image.Gray {
	dup := image.NewGray(c.img.Rect)
	copy(dup.Pix, c.img.Pix)
	return dup
}

func (c *Canvas) fill(v uint8) {
	for i := range c.img.Pix {
		c.img.Pix[i] = v
	}
}

// paintSegment stamps the brush along the line from (x0,y0) to (x1,y1) at
// sub-pixel steps, which yields a round-capped stroke.
func (c *Canvas) paintSegment(x0, y0, x1, y1 float64) {
	dx, dy := x1-x0, y1-y0
	dist := math.Hypot(dx, dy)
	steps := int(math.Ceil(dist))
	if steps == 0 {
		c.stamp(x1, y1)
		return
	}
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.stamp(x0+dx*t, y0+dy*t)
	}
}

// stamp paints one filled white disc of BrushRadius centered at (cx,cy).
func (c *Canvas) stamp(cx, cy float64) {
	x0 := int(math.Floor(cx)) - BrushRadius
	y0 := int(math.Floor(cy)) - BrushRadius
	x1 := int(math.Ceil(cx)) + BrushRadius
	y1 := int(math.Ceil(cy)) + BrushRadius
	r2 := float64(BrushRadius * BrushRadius)
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= Size {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= Size {
				continue
			}
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r2 {
				c.img.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
}
