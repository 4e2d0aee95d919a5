package face

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"go.uber.org/zap"
)

func flatImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func texturedImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 250, G: 30, B: 60, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 10, G: 220, B: 180, A: 255})
			}
		}
	}
	return img
}

func TestScoreFlatImageUsesDetectorSignalOnly(t *testing.T) {
	detector := &stubDetector{detections: []Detection{{DetScore: 1.0}}}
	scorer := NewLivenessScorer(detector, DefaultLivenessConfig(), zap.NewNop())

	score := scorer.Score(context.Background(), flatImage())

	// sharpness, color and texture are all zero on a flat gray image, leaving
	// only the detector signal at weight 0.20 of a full weight sum of 1.0
	if math.Abs(score-0.2) > 1e-9 {
		t.Fatalf("expected score 0.2, got %v", score)
	}
}

func TestScoreRenormalizesWithoutDetectorSignal(t *testing.T) {
	detector := &stubDetector{err: errors.New("engine offline")}
	scorer := NewLivenessScorer(detector, DefaultLivenessConfig(), zap.NewNop())

	flat := scorer.Score(context.Background(), flatImage())
	if flat != 0 {
		t.Fatalf("expected 0 for flat image without detector, got %v", flat)
	}

	textured := scorer.Score(context.Background(), texturedImage())
	if textured <= 0 || textured > 1 {
		t.Fatalf("expected renormalized score in (0,1], got %v", textured)
	}
}

func TestScoreStaysWithinUnitInterval(t *testing.T) {
	detector := &stubDetector{detections: []Detection{{DetScore: 5.0}}}
	scorer := NewLivenessScorer(detector, DefaultLivenessConfig(), zap.NewNop())

	score := scorer.Score(context.Background(), texturedImage())
	if score < 0 || score > 1 {
		t.Fatalf("expected score in [0,1], got %v", score)
	}
}

func TestScoreTexturedBeatsFlat(t *testing.T) {
	detector := &stubDetector{detections: []Detection{{DetScore: 0.9}}}
	scorer := NewLivenessScorer(detector, DefaultLivenessConfig(), zap.NewNop())

	flat := scorer.Score(context.Background(), flatImage())
	textured := scorer.Score(context.Background(), texturedImage())
	if textured <= flat {
		t.Fatalf("expected textured image to outscore flat image: %v vs %v", textured, flat)
	}
}

func TestMinScoreAccessor(t *testing.T) {
	scorer := NewLivenessScorer(&stubDetector{}, DefaultLivenessConfig(), zap.NewNop())
	if scorer.MinScore() != 0.7 {
		t.Fatalf("expected min score 0.7, got %v", scorer.MinScore())
	}
}
