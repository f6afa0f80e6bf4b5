package engine

import (
	"errors"
	"image"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type fakeNet struct {
	shape  []int64
	gotLen int
	out    []float32
	err    error
}

func (f *fakeNet) InputShape() []int64 { return f.shape }

func (f *fakeNet) Forward(input []float32) ([]float32, error) {
	f.gotLen = len(input)
	return f.out, f.err
}

func (f *fakeNet) Close() {}

func blankRaster() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 280, 280))
}

func evenProbs() []float32 {
	out := make([]float32, NumClasses)
	for i := range out {
		out[i] = 0.1
	}
	return out
}

func TestClassifyBeforeInitialize(t *testing.T) {
	e := New(Config{Logf: t.Logf})
	if e.IsReady() {
		t.Fatal("engine ready before Initialize")
	}
	if _, err := e.Classify(blankRaster()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Classify before Initialize: err = %v, want ErrNotReady", err)
	}
}

func TestInitializeAlwaysEndsReady(t *testing.T) {
	e := New(Config{ModelPath: "testdata/definitely-missing.onnx", Logf: t.Logf})
	src := e.Initialize()
	defer e.Close()

	if src != SourceUntrained {
		t.Fatalf("source = %v, want %v", src, SourceUntrained)
	}
	if !e.IsReady() {
		t.Fatal("engine not ready after Initialize")
	}
	if again := e.Initialize(); again != SourceUntrained {
		t.Fatalf("second Initialize changed source to %v", again)
	}
}

func TestInitializeSkipsUnusableRemote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not an onnx artifact"))
	}))
	defer ts.Close()

	e := New(Config{ModelPath: "testdata/missing.onnx", RemoteURL: ts.URL, Logf: t.Logf})
	defer e.Close()
	if src := e.Initialize(); src != SourceUntrained {
		t.Fatalf("source = %v, want %v for a malformed remote artifact", src, SourceUntrained)
	}
	if !e.IsReady() {
		t.Fatal("engine not ready after Initialize")
	}
}

func TestInitializeRemovesDownloadedArtifact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not an onnx artifact"))
	}))
	defer ts.Close()

	pattern := filepath.Join(os.TempDir(), "digitpad-*.onnx")
	before, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatal(err)
	}

	e := New(Config{ModelPath: "testdata/missing.onnx", RemoteURL: ts.URL, Logf: t.Logf})
	defer e.Close()
	e.Initialize()

	after, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("remote load path left %d downloaded artifact(s) behind", len(after)-len(before))
	}
}

func TestFetchArtifact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer ts.Close()

	path, err := fetchArtifact(ts.URL)
	if err != nil {
		t.Fatalf("fetchArtifact: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })
	if path == "" {
		t.Fatal("fetchArtifact returned an empty path")
	}
}

func TestFetchArtifactRejectsStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	if _, err := fetchArtifact(ts.URL); err == nil {
		t.Fatal("fetchArtifact accepted a 404 response")
	}
	if _, err := fetchArtifact(""); err == nil {
		t.Fatal("fetchArtifact accepted an empty URL")
	}
}

func TestClassifyFlatShapePath(t *testing.T) {
	net := &fakeNet{shape: []int64{1, 784}, out: evenProbs()}
	e := &Engine{cfg: Config{Logf: t.Logf}, net: net, source: SourceLocal}

	if _, err := e.Classify(blankRaster()); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if net.gotLen != InputSize*InputSize {
		t.Fatalf("flat network fed %d elements, want %d", net.gotLen, InputSize*InputSize)
	}
}

func TestClassifyVolumeShapePath(t *testing.T) {
	net := &fakeNet{shape: []int64{1, 28, 28, 1}, out: evenProbs()}
	e := &Engine{cfg: Config{Logf: t.Logf}, net: net, source: SourceLocal}

	if _, err := e.Classify(blankRaster()); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if net.gotLen != InputSize*InputSize {
		t.Fatalf("volume network fed %d elements, want %d", net.gotLen, InputSize*InputSize)
	}
}

func TestClassifyRejectsShortOutput(t *testing.T) {
	net := &fakeNet{shape: []int64{1, 784}, out: make([]float32, 5)}
	e := &Engine{cfg: Config{Logf: t.Logf}, net: net, source: SourceLocal}

	if _, err := e.Classify(blankRaster()); err == nil {
		t.Fatal("Classify accepted a 5-element network output")
	}
}

func TestClassifyPropagatesForwardError(t *testing.T) {
	boom := errors.New("boom")
	net := &fakeNet{shape: []int64{1, 784}, err: boom}
	e := &Engine{cfg: Config{Logf: t.Logf}, net: net, source: SourceLocal}

	if _, err := e.Classify(blankRaster()); !errors.Is(err, boom) {
		t.Fatalf("Classify err = %v, want wrapped forward error", err)
	}
}

func TestClassifyOnUntrainedNetwork(t *testing.T) {
	e := New(Config{Logf: t.Logf})
	e.Initialize()
	defer e.Close()

	probs, err := e.Classify(blankRaster())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(probs) != NumClasses {
		t.Fatalf("got %d probabilities, want %d", len(probs), NumClasses)
	}
	var sum float64
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability %d = %g, outside [0,1]", i, p)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Fatalf("probabilities sum to %g, want 1 within 1e-4", sum)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	e := New(Config{Logf: t.Logf})
	e.Initialize()
	defer e.Close()

	first, err := e.Classify(blankRaster())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, err := e.Classify(blankRaster())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("class %d differs between identical inputs: %g vs %g", i, first[i], second[i])
		}
	}
}

func TestCloseMakesEngineNotReady(t *testing.T) {
	e := New(Config{Logf: t.Logf})
	e.Initialize()
	e.Close()
	if e.IsReady() {
		t.Fatal("engine still ready after Close")
	}
	if e.Source() != SourceNone {
		t.Fatalf("source = %v after Close, want %v", e.Source(), SourceNone)
	}
}
