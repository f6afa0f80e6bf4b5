// Package app hosts the drawing surface, inference engine and prediction
// display in a desktop window.
package app

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"digitpad/internal/canvas"
	"digitpad/internal/display"
	"digitpad/internal/engine"
)

const (
	margin   = 20
	paneSize = canvas.Size
	barsW    = 260

	// ScreenW and ScreenH are the logical window dimensions.
	ScreenW = margin + paneSize + margin + barsW + margin
	ScreenH = margin + paneSize + margin

	barsX  = margin + paneSize + margin
	barsY0 = margin + 20
	barsY1 = ScreenH - margin - 30
	labelY = barsY1 + 6
)

// App wires the three components together. Everything except the inference
// goroutines runs on the ebiten update loop; finished predictions come back
// over the results channel.
type App struct {
	engine  *engine.Engine
	canvas  *canvas.Canvas
	preds   []display.Prediction
	results chan []float32

	tex  *ebiten.Image
	rgba []byte
}

func New(eng *engine.Engine) *App {
	a := &App{
		engine:  eng,
		preds:   display.Reset(),
		results: make(chan []float32, 8),
	}
	a.canvas = canvas.New()
	a.canvas.SetViewport(paneSize, paneSize)
	a.canvas.OnStroke(a.submit)
	a.canvas.OnClear(func() { a.preds = display.Reset() })
	return a
}

// submit runs one classification off the update loop. Overlapping strokes
// each get their own inference; there is no queueing or cancellation, and
// results are applied in arrival order.
func (a *App) submit(snapshot *image.Gray) {
	if !a.engine.IsReady() {
		return
	}
	go func() {
		probs, err := a.engine.Classify(snapshot)
		if err != nil {
			log.Printf("classify: %v", err)
			return
		}
		select {
		case a.results <- probs:
		default:
			log.Printf("dropping prediction, display backlog full")
		}
	}()
}

func (a *App) Update() error {
	for {
		select {
		case probs := <-a.results:
			a.preds = display.FromProbs(probs)
			continue
		default:
		}
		break
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) ||
		inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		a.canvas.Clear()
	}

	x, y := ebiten.CursorPosition()
	cx, cy := float64(x-margin), float64(y-margin)
	inside := cx >= 0 && cy >= 0 && cx < paneSize && cy < paneSize
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && inside:
		a.canvas.PointerDown(cx, cy)
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) && inside:
		a.canvas.PointerMove(cx, cy)
	default:
		// Released, or the pointer left the surface mid-stroke.
		a.canvas.PointerUp()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xFF})
	a.blitCanvas(screen)
	vector.StrokeRect(screen, margin-1, margin-1, paneSize+2, paneSize+2, 1,
		color.RGBA{R: 0x60, G: 0x60, B: 0x68, A: 0xFF}, false)

	bars := display.Layout(a.preds, image.Rect(barsX, barsY0, barsX+barsW, barsY1))
	for _, b := range bars {
		vector.DrawFilledRect(screen, float32(b.Rect.Min.X), float32(b.Rect.Min.Y),
			float32(b.Rect.Dx()), float32(b.Rect.Dy()), b.Color, false)
		if b.Best && b.Rect.Dy() > 0 {
			vector.StrokeRect(screen, float32(b.Rect.Min.X), float32(b.Rect.Min.Y),
				float32(b.Rect.Dx()), float32(b.Rect.Dy()), 2, color.White, false)
		}
		ebitenutil.DebugPrintAt(screen, strconv.Itoa(b.Digit),
			b.Rect.Min.X+b.Rect.Dx()/2-3, labelY)
	}

	best := display.ArgMax(a.preds)
	header := fmt.Sprintf("prediction: %d (%.1f%%)",
		a.preds[best].Digit, a.preds[best].Prob*100)
	ebitenutil.DebugPrintAt(screen, header, barsX, margin)
	ebitenutil.DebugPrintAt(screen, "draw a digit, C or right-click clears", margin, ScreenH-16)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenW, ScreenH
}

func (a *App) blitCanvas(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(paneSize, paneSize)
		a.rgba = make([]byte, paneSize*paneSize*4)
	}
	for i, v := range a.canvas.Image().Pix {
		j := i * 4
		a.rgba[j] = v
		a.rgba[j+1] = v
		a.rgba[j+2] = v
		a.rgba[j+3] = 0xFF
	}
	a.tex.WritePixels(a.rgba)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(margin, margin)
	screen.DrawImage(a.tex, op)
}
