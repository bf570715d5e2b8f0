package imgstore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/roll-call/internal/engine"
)

func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestSaveCrop(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := testFrame(t, 640, 480)
	path, err := store.SaveCrop(frame, engine.BBox{X1: 100, Y1: 100, X2: 220, Y2: 240})
	if err != nil {
		t.Fatalf("SaveCrop failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("crop saved to %q, want directory %q", path, dir)
	}
	if !strings.HasSuffix(path, ".jpg") {
		t.Errorf("crop path %q missing .jpg suffix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crop: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode crop: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("crop format = %q, want jpeg", format)
	}
	// Padded box is 168x196 which stays under the downscale limit.
	if img.Bounds().Dx() > 256 || img.Bounds().Dy() > 256 {
		t.Errorf("crop %dx%d exceeds downscale limit", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestSaveCropClampsToFrame(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := testFrame(t, 320, 240)
	// Box hangs over the frame edge.
	path, err := store.SaveCrop(frame, engine.BBox{X1: 280, Y1: 200, X2: 400, Y2: 300})
	if err != nil {
		t.Fatalf("SaveCrop failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("crop file missing: %v", err)
	}
}

func TestSaveCropOutsideFrame(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := testFrame(t, 320, 240)
	if _, err := store.SaveCrop(frame, engine.BBox{X1: 500, Y1: 500, X2: 600, Y2: 600}); err == nil {
		t.Error("expected error for box outside frame")
	}
}

func TestSaveCropDownscalesLargeBox(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := testFrame(t, 1280, 960)
	path, err := store.SaveCrop(frame, engine.BBox{X1: 0, Y1: 0, X2: 800, Y2: 600})
	if err != nil {
		t.Fatalf("SaveCrop failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crop: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode crop: %v", err)
	}
	if img.Bounds().Dx() > 256 || img.Bounds().Dy() > 256 {
		t.Errorf("crop %dx%d not downscaled", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty directory")
	}
}
