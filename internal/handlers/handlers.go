package handlers

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"

	"digitpad/internal/canvas"
	"digitpad/internal/display"
	"digitpad/internal/engine"
)

type Handler struct {
	engine *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

type ClassifyResponse struct {
	Digit         int       `json:"digit"`
	Confidence    float32   `json:"confidence"`
	Probabilities []float32 `json:"probabilities"`
}

// RawRequest carries a raster at the drawing surface's native resolution,
// row-major grayscale intensities in [0,255].
type RawRequest struct {
	Image []float32 `json:"image"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "healthy",
		"ready":  h.engine.IsReady(),
		"source": h.engine.Source().String(),
	})
}

// Classify accepts a multipart image upload under the "image" field,
// classifies it and returns the digit probabilities.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.engine.IsReady() {
		http.Error(w, "Model not loaded", http.StatusServiceUnavailable)
		return
	}

	// 10MB max
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}
	log.Printf("classify upload %q (%s, %dx%d)", header.Filename, format,
		img.Bounds().Dx(), img.Bounds().Dy())

	h.respond(w, img)
}

// ClassifyRaw accepts a JSON grayscale raster at the canvas resolution.
func (h *Handler) ClassifyRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.engine.IsReady() {
		http.Error(w, "Model not loaded", http.StatusServiceUnavailable)
		return
	}

	var req RawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	want := canvas.Size * canvas.Size
	if len(req.Image) != want {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", want, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	img := image.NewGray(image.Rect(0, 0, canvas.Size, canvas.Size))
	for i, v := range req.Image {
		switch {
		case v <= 0:
			img.Pix[i] = 0
		case v >= 255:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v)
		}
	}

	h.respond(w, img)
}

func (h *Handler) respond(w http.ResponseWriter, img image.Image) {
	probs, err := h.engine.Classify(img)
	if err != nil {
		log.Printf("classify: %v", err)
		http.Error(w, "Classification failed", http.StatusInternalServerError)
		return
	}

	best := display.ArgMax(display.FromProbs(probs))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClassifyResponse{
		Digit:         best,
		Confidence:    probs[best],
		Probabilities: probs,
	})
}
