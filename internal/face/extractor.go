package face

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/imaging"
)

// DocumentType selects the region of the document where the photo is expected.
type DocumentType string

// Supported document types.
const (
	DocumentPassport DocumentType = "passport"
	DocumentIDCard   DocumentType = "id_card"
)

// Extraction method labels recorded on the observation.
const (
	extractMethodPrimary = "primary"
	extractMethodCascade = "cascade"
)

// cascadeDetScore is the synthetic detection confidence assigned to cascade
// hits, which report no score of their own.
const cascadeDetScore = 0.8

// Observation is a face located in an image: the enhanced crop plus detection
// metadata. Embedding is nil when only the cascade fallback found the face.
type Observation struct {
	Image     image.Image
	Box       image.Rectangle
	DetScore  float64
	Embedding []float64
	Landmarks []image.Point
	Age       *int
	Gender    *int
	Method    string
}

// ExtractorConfig tunes document face extraction.
type ExtractorConfig struct {
	Padding    int
	TargetSize int
}

// DefaultExtractorConfig matches the embedding engine's expected input.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{Padding: 20, TargetSize: 112}
}

// Extractor locates a face within the document-type-specific region of a
// document image.
type Extractor struct {
	detector Detector
	cascade  CascadeDetector
	cfg      ExtractorConfig
	logger   *zap.Logger
}

// NewExtractor constructs a document face extractor.
func NewExtractor(detector Detector, cascade CascadeDetector, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	return &Extractor{detector: detector, cascade: cascade, cfg: cfg, logger: logger.Named("face_extractor")}
}

// ExtractFromDocument crops the document-type ROI and locates a face in it,
// trying the primary engine first and the cascade detector second. A nil
// observation means no face was found; that is a legitimate business outcome,
// not a fault, and engine failures along the way are logged and folded into
// it.
func (e *Extractor) ExtractFromDocument(ctx context.Context, doc image.Image, docType DocumentType) *Observation {
	roi := imaging.Crop(doc, regionOfInterest(doc.Bounds(), docType))

	if obs := e.primaryDetect(ctx, roi); obs != nil {
		return obs
	}
	if obs := e.cascadeDetect(ctx, roi); obs != nil {
		return obs
	}

	e.logger.Warn("no face detected in document", zap.String("document_type", string(docType)))
	return nil
}

func (e *Extractor) primaryDetect(ctx context.Context, roi *image.RGBA) *Observation {
	detections, err := e.detector.Detect(ctx, roi)
	if err != nil {
		e.logger.Warn("primary face detection failed", zap.Error(err))
		return nil
	}
	if len(detections) == 0 {
		return nil
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.DetScore > best.DetScore {
			best = d
		}
	}

	padded := padBox(best.Box, e.cfg.Padding, roi.Bounds())
	crop := imaging.Crop(roi, padded)
	return &Observation{
		Image:     e.enhance(crop),
		Box:       best.Box,
		DetScore:  best.DetScore,
		Embedding: best.Embedding,
		Landmarks: best.Landmarks,
		Age:       best.Age,
		Gender:    best.Gender,
		Method:    extractMethodPrimary,
	}
}

func (e *Extractor) cascadeDetect(ctx context.Context, roi *image.RGBA) *Observation {
	boxes, err := e.cascade.DetectBoxes(ctx, imaging.ToGray(roi))
	if err != nil {
		e.logger.Warn("cascade face detection failed", zap.Error(err))
		return nil
	}
	if len(boxes) == 0 {
		return nil
	}

	largest := boxes[0]
	for _, box := range boxes[1:] {
		if box.Dx()*box.Dy() > largest.Dx()*largest.Dy() {
			largest = box
		}
	}

	padded := padBox(largest, e.cfg.Padding, roi.Bounds())
	crop := imaging.Crop(roi, padded)
	return &Observation{
		Image:    e.enhance(crop),
		Box:      largest,
		DetScore: cascadeDetScore,
		Method:   extractMethodCascade,
	}
}

// enhance runs the fixed enhancement pipeline on an extracted crop: local
// contrast equalization on luminance, color-preserving denoise, then resize
// to the embedding engine's input size.
func (e *Extractor) enhance(crop image.Image) image.Image {
	enhanced := imaging.EnhanceLuminance(crop, 3.0)
	denoised := imaging.DenoiseColor(enhanced)
	return imaging.Resize(denoised, e.cfg.TargetSize, e.cfg.TargetSize)
}

func regionOfInterest(bounds image.Rectangle, docType DocumentType) image.Rectangle {
	width, height := bounds.Dx(), bounds.Dy()
	frac := func(fx1, fy1, fx2, fy2 float64) image.Rectangle {
		return image.Rect(
			bounds.Min.X+int(float64(width)*fx1),
			bounds.Min.Y+int(float64(height)*fy1),
			bounds.Min.X+int(float64(width)*fx2),
			bounds.Min.Y+int(float64(height)*fy2),
		)
	}
	// The photo sits on the left of a passport data page; ID card layouts
	// vary more.
	if docType == DocumentIDCard {
		return frac(0.05, 0.2, 0.45, 0.8)
	}
	return frac(0.05, 0.3, 0.35, 0.8)
}

func padBox(box image.Rectangle, padding int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(box.Min.X-padding, box.Min.Y-padding, box.Max.X+padding, box.Max.Y+padding).Intersect(bounds)
}
