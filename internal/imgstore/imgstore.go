// Package imgstore saves face crops to disk so that registered faces can be
// reviewed later. Crops are stored as JPEG under a flat directory with
// generated names.
package imgstore

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/roll-call/internal/engine"
)

const (
	cropPadding = 0.2 // fraction of box size added around the face
	maxCropSide = 256 // saved crops are downscaled to at most this side
)

// Store writes face crops into a directory.
type Store struct {
	dir string
}

// New creates the crop directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveCrop cuts the padded bounding box out of the frame, downscales it and
// writes it as JPEG. Returns the path of the saved file.
func (s *Store) SaveCrop(frame []byte, box engine.BBox) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	rect := paddedRect(box, img.Bounds())
	if rect.Empty() {
		return "", fmt.Errorf("face box outside frame")
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)

	out := downscale(crop)

	path := filepath.Join(s.dir, uuid.New().String()+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create crop file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, out, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	return path, nil
}

// paddedRect expands the box by cropPadding and clamps it to the frame.
func paddedRect(box engine.BBox, frame image.Rectangle) image.Rectangle {
	padX := int(box.Width() * cropPadding)
	padY := int(box.Height() * cropPadding)
	rect := image.Rect(
		int(box.X1)-padX,
		int(box.Y1)-padY,
		int(box.X2)+padX,
		int(box.Y2)+padY,
	)
	return rect.Intersect(frame)
}

// downscale shrinks the crop to maxCropSide while keeping aspect ratio.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxCropSide && height <= maxCropSide {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxCropSide
		newHeight = int(float64(height) * float64(maxCropSide) / float64(width))
	} else {
		newHeight = maxCropSide
		newWidth = int(float64(width) * float64(maxCropSide) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
