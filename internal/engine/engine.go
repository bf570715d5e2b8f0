// Package engine talks to the face detection sidecar. The sidecar accepts
// an image and returns the detected faces with their bounding boxes,
// detection scores and embedding vectors.
package engine

import (
	"context"
)

// BBox is a face bounding box in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the box width in pixels.
func (b BBox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the box height in pixels.
func (b BBox) Height() float64 {
	return b.Y2 - b.Y1
}

// MinSide returns the shorter side of the box.
func (b BBox) MinSide() float64 {
	w, h := b.Width(), b.Height()
	if w < h {
		return w
	}
	return h
}

// Detection is a single face found in an image.
type Detection struct {
	BBox      BBox
	Score     float64
	Embedding []float32
}

// Engine detects faces and computes their embeddings.
type Engine interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]Detection, error)
}
