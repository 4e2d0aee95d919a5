package face

import (
	"context"
	"image"
)

// Detection is one face found by the primary detection/embedding engine.
type Detection struct {
	Box       image.Rectangle
	DetScore  float64
	Embedding []float64
	Landmarks []image.Point
	Age       *int
	Gender    *int
}

// Detector is the primary face-detection/embedding capability.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// CascadeDetector is the classical fallback detector used when the primary
// engine finds nothing in a document crop. It reports boxes only.
type CascadeDetector interface {
	DetectBoxes(ctx context.Context, gray *image.Gray) ([]image.Rectangle, error)
}

// FallbackComparator is the distance-based face comparison capability used
// when the embedding path fails. Its encodings have their own dimensionality
// and are not interchangeable with the primary engine's embeddings.
type FallbackComparator interface {
	Encode(ctx context.Context, img image.Image) ([][]float64, error)
	Distance(known [][]float64, probe []float64) []float64
}
