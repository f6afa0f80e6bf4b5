package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// network is a loaded-network handle: the engine only needs the declared
// input shape and a forward pass. The arithmetic behind Forward belongs to
// the implementation.
type network interface {
	// InputShape is the concrete input shape with the batch dimension
	// resolved to one.
	InputShape() []int64
	// Forward runs one inference over input and returns the raw output
	// values. Implementations must release any per-call buffers on every
	// exit path.
	Forward(input []float32) ([]float32, error)
	Close()
}

// The ONNX runtime environment is process-wide and initialized at most once.
var (
	ortOnce    sync.Once
	ortInitErr error
)

func initRuntime() error {
	ortOnce.Do(func() {
		if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// onnxNetwork wraps an ONNX runtime session. Tensors are created per call
// and destroyed before Forward returns, so repeated predictions do not
// accumulate native memory.
type onnxNetwork struct {
	session     *ort.DynamicAdvancedSession
	inputShape  []int64
	outputShape []int64
}

// loadModel opens the ONNX artifact at path and prepares a session for it.
func loadModel(path string) (*onnxNetwork, error) {
	if path == "" {
		return nil, errors.New("no model path configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("model declares %d inputs and %d outputs, want 1 and 1",
			len(inputs), len(outputs))
	}

	inShape, err := resolveShape(inputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("model input: %w", err)
	}
	outShape := resolveBatch(outputs[0].Dimensions)
	if elementCount(outShape) != NumClasses {
		return nil, fmt.Errorf("model output has %d elements, want %d",
			elementCount(outShape), NumClasses)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &onnxNetwork{
		session:     session,
		inputShape:  inShape,
		outputShape: outShape,
	}, nil
}

func (n *onnxNetwork) InputShape() []int64 {
	return n.inputShape
}

func (n *onnxNetwork) Forward(input []float32) ([]float32, error) {
	in, err := ort.NewTensor(ort.NewShape(n.inputShape...), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(n.outputShape...))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := n.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, err
	}

	probs := make([]float32, NumClasses)
	copy(probs, out.GetData())
	return probs, nil
}

func (n *onnxNetwork) Close() {
	if n.session != nil {
		n.session.Destroy()
		n.session = nil
	}
}

// fetchArtifact downloads the artifact at url into a temporary file and
// returns its path.
func fetchArtifact(url string) (string, error) {
	if url == "" {
		return "", errors.New("no fallback URL configured")
	}
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %q: %s", url, resp.Status)
	}

	f, err := os.CreateTemp("", "digitpad-*.onnx")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download %q: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
