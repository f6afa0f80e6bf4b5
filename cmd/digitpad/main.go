package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"

	"digitpad/internal/app"
	"digitpad/internal/engine"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	modelPath := flag.String("model",
		envOr("DIGITPAD_MODEL", filepath.Join("models", "mnist.onnx")),
		"path to the local ONNX model artifact")
	modelURL := flag.String("model-url",
		envOr("DIGITPAD_MODEL_URL", engine.DefaultRemoteURL),
		"pretrained model URL tried when the local artifact is missing")
	flag.Parse()

	eng := engine.New(engine.Config{ModelPath: *modelPath, RemoteURL: *modelURL})
	src := eng.Initialize()
	defer eng.Close()
	log.Printf("network ready (source: %s)", src)
	if src == engine.SourceUntrained {
		log.Printf("warning: no model artifact found, predictions will be near-random")
	}

	ebiten.SetWindowTitle("digitpad")
	ebiten.SetWindowSize(app.ScreenW*2, app.ScreenH*2)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(app.New(eng)); err != nil {
		log.Fatalf("window failed: %v", err)
	}
}
