package engine

import (
	"image"
	"testing"
)

func TestResolveShape(t *testing.T) {
	cases := []struct {
		name     string
		declared []int64
		want     []int64
		wantErr  bool
	}{
		{name: "flat", declared: []int64{1, 784}, want: []int64{1, 784}},
		{name: "flat dynamic batch", declared: []int64{-1, 784}, want: []int64{1, 784}},
		{name: "volume channels-last", declared: []int64{1, 28, 28, 1}, want: []int64{1, 28, 28, 1}},
		{name: "volume channels-first", declared: []int64{1, 1, 28, 28}, want: []int64{1, 1, 28, 28}},
		{name: "no batch dimension", declared: []int64{784}, wantErr: true},
		{name: "fixed batch above one", declared: []int64{2, 784}, wantErr: true},
		{name: "wrong element count", declared: []int64{1, 100}, wantErr: true},
		{name: "dynamic inner dimension", declared: []int64{1, -1, 28}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveShape(tc.declared)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("resolveShape(%v) = %v, want error", tc.declared, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveShape(%v): %v", tc.declared, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("resolveShape(%v) = %v, want %v", tc.declared, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("resolveShape(%v) = %v, want %v", tc.declared, got, tc.want)
				}
			}
			if n := elementCount(got); n != InputSize*InputSize {
				t.Errorf("elementCount(%v) = %d, want %d", got, n, InputSize*InputSize)
			}
		})
	}
}

func TestTensorizeBlackRaster(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 280, 280))
	data, err := tensorize(img, []int64{1, 28, 28, 1})
	if err != nil {
		t.Fatalf("tensorize: %v", err)
	}
	if len(data) != InputSize*InputSize {
		t.Fatalf("got %d elements, want %d", len(data), InputSize*InputSize)
	}
	for i, v := range data {
		if v != 0 {
			t.Fatalf("element %d = %g, want 0 for an all-black raster", i, v)
		}
	}
}

func TestTensorizeWhiteRaster(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 280, 280))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	data, err := tensorize(img, []int64{1, 784})
	if err != nil {
		t.Fatalf("tensorize: %v", err)
	}
	for i, v := range data {
		if v < 0.98 || v > 1 {
			t.Fatalf("element %d = %g, want ~1 for an all-white raster", i, v)
		}
	}
}

func TestTensorizeRejectsMismatchedShape(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 280, 280))
	if _, err := tensorize(img, []int64{1, 100}); err == nil {
		t.Fatal("tensorize accepted a shape that cannot hold the input")
	}
}

func TestTensorizeDeterministic(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 280, 280))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	a, err := tensorize(img, []int64{1, 784})
	if err != nil {
		t.Fatalf("tensorize: %v", err)
	}
	b, err := tensorize(img, []int64{1, 784})
	if err != nil {
		t.Fatalf("tensorize: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("element %d differs between identical calls: %g vs %g", i, a[i], b[i])
		}
	}
}
