package face

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/imaging"
)

// Liveness signal weights: sharpness, color distribution, texture, detector
// confidence. Renormalized when a signal is unavailable.
var livenessWeights = []float64{0.25, 0.25, 0.30, 0.20}

// LivenessConfig tunes the composite anti-spoofing score.
type LivenessConfig struct {
	MinScore          float64
	SharpnessDivisor  float64
	SaturationDivisor float64
	EdgeThreshold     uint8
}

// DefaultLivenessConfig matches the tuning used for selfie capture.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		MinScore:          0.7,
		SharpnessDivisor:  1000,
		SaturationDivisor: 5000,
		EdgeThreshold:     60,
	}
}

// LivenessScorer computes a heuristic anti-spoofing score for a single face
// image from independent low-level signals. It is a weak signal, not a
// security boundary: high-quality printed or replayed attacks can defeat it.
type LivenessScorer struct {
	detector Detector
	cfg      LivenessConfig
	logger   *zap.Logger
}

// NewLivenessScorer constructs a scorer that uses the primary detector for
// its detection-confidence signal.
func NewLivenessScorer(detector Detector, cfg LivenessConfig, logger *zap.Logger) *LivenessScorer {
	return &LivenessScorer{detector: detector, cfg: cfg, logger: logger.Named("liveness")}
}

// MinScore reports the pass threshold for the composite score.
func (s *LivenessScorer) MinScore() float64 { return s.cfg.MinScore }

// Score returns the composite liveness estimate in [0,1]. Signals:
// Laplacian-variance sharpness, saturation spread (flat prints score low),
// edge-density texture richness, and the detector's confidence on this image.
// The detector signal is omitted with weight redistribution when detection
// fails.
func (s *LivenessScorer) Score(ctx context.Context, img image.Image) float64 {
	gray := imaging.ToGray(img)
	var signals []float64

	sharpness := capAtOne(imaging.LaplacianVariance(gray) / s.cfg.SharpnessDivisor)
	signals = append(signals, sharpness)

	satMean, satStd := imaging.SaturationStats(img)
	colorSpread := capAtOne(satMean * satStd / s.cfg.SaturationDivisor)
	signals = append(signals, colorSpread)

	texture := capAtOne(imaging.EdgeDensity(gray, s.cfg.EdgeThreshold) * 10)
	signals = append(signals, texture)

	if detections, err := s.detector.Detect(ctx, img); err != nil {
		s.logger.Debug("liveness detector signal unavailable", zap.Error(err))
	} else if len(detections) > 0 {
		signals = append(signals, capAtOne(detections[0].DetScore))
	}

	var weighted, weightSum float64
	for i, signal := range signals {
		weighted += signal * livenessWeights[i]
		weightSum += livenessWeights[i]
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

func capAtOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
