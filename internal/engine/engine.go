// Package engine owns the loaded digit-classification network and the
// raster-to-tensor preprocessing in front of it. The network handle is
// private to this package; callers interact through Initialize, IsReady
// and Classify only.
package engine

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
)

const (
	// InputSize is the side length, in pixels, of the image the network
	// consumes.
	InputSize = 28
	// NumClasses is the number of digit classes.
	NumClasses = 10
)

// ErrNotReady is returned by Classify when no network has been loaded yet.
// Callers are expected to gate Classify on IsReady rather than retry.
var ErrNotReady = errors.New("engine: no network loaded")

// DefaultRemoteURL points at a pretrained MNIST artifact used when no local
// model is available.
const DefaultRemoteURL = "https://github.com/onnx/models/raw/main/validated/vision/classification/mnist/model/mnist-12.onnx"

// Source identifies which step of the load chain produced the current
// network.
type Source int

const (
	SourceNone Source = iota
	SourceLocal
	SourceRemote
	SourceUntrained
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceUntrained:
		return "untrained"
	default:
		return "none"
	}
}

// Config controls where Initialize looks for a model artifact.
type Config struct {
	// ModelPath is the co-deployed ONNX artifact tried first.
	ModelPath string
	// RemoteURL is the pretrained artifact downloaded when ModelPath
	// fails. Empty disables the download step.
	RemoteURL string
	// Logf receives load-chain progress. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Engine classifies raster images into digit probabilities. The zero value
// is not ready; call Initialize before Classify.
type Engine struct {
	cfg    Config
	net    network
	source Source
}

func New(cfg Config) *Engine {
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Engine{cfg: cfg}
}

// Initialize loads a network, trying the local artifact, then the remote
// pretrained one, and finally synthesizing a freshly initialized untrained
// network. It never fails: load errors are logged and the chain moves on,
// so the engine is always ready afterwards. The returned Source reports
// which step won. Calling Initialize on a ready engine is a no-op.
func (e *Engine) Initialize() Source {
	if e.net != nil {
		return e.source
	}

	if net, err := loadModel(e.cfg.ModelPath); err != nil {
		e.cfg.Logf("local model %q unavailable: %v", e.cfg.ModelPath, err)
	} else {
		e.cfg.Logf("loaded local model %q", e.cfg.ModelPath)
		e.net, e.source = net, SourceLocal
		return e.source
	}

	if path, err := fetchArtifact(e.cfg.RemoteURL); err != nil {
		e.cfg.Logf("remote model unavailable: %v", err)
	} else {
		net, err := loadModel(path)
		// The session holds the model in memory, the download is done.
		os.Remove(path)
		if err != nil {
			e.cfg.Logf("remote model %q unusable: %v", e.cfg.RemoteURL, err)
		} else {
			e.cfg.Logf("loaded pretrained model from %q", e.cfg.RemoteURL)
			e.net, e.source = net, SourceRemote
			return e.source
		}
	}

	e.cfg.Logf("no model artifact available, synthesizing an untrained network")
	e.net, e.source = newConvNet(untrainedSeed), SourceUntrained
	return e.source
}

// IsReady reports whether a network is loaded. Pure query.
func (e *Engine) IsReady() bool {
	return e != nil && e.net != nil
}

// Source reports how the current network was obtained, SourceNone before
// Initialize. Callers that care whether predictions are meaningful can
// check for SourceUntrained; IsReady deliberately does not distinguish.
func (e *Engine) Source() Source {
	return e.source
}

// Classify runs one forward pass over img and returns the ten class
// probabilities in digit order. The raster is downsampled to
// InputSize×InputSize with bilinear interpolation, normalized to [0,1] and
// laid out to match the network's declared input shape with a batch
// dimension of one. All intermediate buffers are scoped to the call.
func (e *Engine) Classify(img image.Image) ([]float32, error) {
	if !e.IsReady() {
		return nil, ErrNotReady
	}
	input, err := tensorize(img, e.net.InputShape())
	if err != nil {
		return nil, err
	}
	probs, err := e.net.Forward(input)
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	if len(probs) != NumClasses {
		return nil, fmt.Errorf("network produced %d outputs, want %d", len(probs), NumClasses)
	}
	return probs, nil
}

// Close releases the loaded network. The engine is not ready afterwards.
func (e *Engine) Close() {
	if e.net != nil {
		e.net.Close()
		e.net = nil
		e.source = SourceNone
	}
}
