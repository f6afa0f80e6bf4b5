package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"digitpad/internal/engine"
	"digitpad/internal/handlers"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	modelPath := envOr("DIGITPAD_MODEL", filepath.Join("models", "mnist.onnx"))
	modelURL := envOr("DIGITPAD_MODEL_URL", engine.DefaultRemoteURL)

	eng := engine.New(engine.Config{ModelPath: modelPath, RemoteURL: modelURL})
	src := eng.Initialize()
	defer eng.Close()
	if src == engine.SourceUntrained {
		log.Printf("warning: serving with an untrained network, predictions are near-random")
	}

	handler := handlers.NewHandler(eng)

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/classify", enableCORS(handler.Classify))
	http.HandleFunc("/classify/raw", enableCORS(handler.ClassifyRaw))

	port := envOr("PORT", "8080")

	log.Printf("Server starting on port %s (model source: %s)", port, src)
	log.Println("Endpoints:")
	log.Println("  GET  /health       - Health check")
	log.Println("  POST /classify     - Classify an uploaded PNG/JPEG digit")
	log.Println("  POST /classify/raw - Classify a raw 280x280 grayscale array")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
