package ocr

import (
	"context"
	"image"
)

// PageMode selects the recognition engine's page segmentation strategy.
type PageMode int

// Page segmentation modes supported by the recognition engine.
const (
	ModeStandard     PageMode = 3
	ModeSingleColumn PageMode = 4
	ModeUniformBlock PageMode = 6
	ModeSingleLine   PageMode = 7
	ModeSparseText   PageMode = 11
)

// ModeConfig is one engine configuration for a recognition pass.
type ModeConfig struct {
	PageMode PageMode
	Language string
}

// Token is a single recognized token with the engine's confidence for it on a
// 0-100 scale.
type Token struct {
	Text       string
	Confidence float64
}

// Engine is the external text-recognition capability. It is expected to be
// called many times per request with different configurations; any call may
// fail and failures are treated as a missing observation, never retried.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, cfg ModeConfig) (string, error)
	RecognizeWithConfidence(ctx context.Context, img image.Image) ([]Token, error)
}
