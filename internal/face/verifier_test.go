package face

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"go.uber.org/zap"
)

type stubDetector struct {
	detections []Detection
	err        error
	calls      int
}

func (s *stubDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.detections, nil
}

type stubFallback struct {
	encodings [][][]float64
	encodeErr error
	distances []float64
}

func (s *stubFallback) Encode(ctx context.Context, img image.Image) ([][]float64, error) {
	if s.encodeErr != nil {
		return nil, s.encodeErr
	}
	if len(s.encodings) == 0 {
		return nil, nil
	}
	out := s.encodings[0]
	s.encodings = s.encodings[1:]
	return out, nil
}

func (s *stubFallback) Distance(known [][]float64, probe []float64) []float64 {
	return s.distances
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 16, 16))
}

func TestVerifyPrimaryPathUsesDocumentEmbedding(t *testing.T) {
	detector := &stubDetector{detections: []Detection{{Embedding: []float64{1, 0}}}}
	verifier := NewVerifier(detector, &stubFallback{}, DefaultVerifierConfig(), zap.NewNop())

	docMeta := &Observation{Embedding: []float64{1, 0}}
	result := verifier.Verify(context.Background(), testImage(), docMeta, testImage())

	if result.Method != MethodPrimary {
		t.Fatalf("expected method %s, got %s", MethodPrimary, result.Method)
	}
	if !result.Verified {
		t.Fatal("expected identical embeddings to verify")
	}
	if math.Abs(result.Confidence-1) > 1e-9 {
		t.Fatalf("expected confidence 1, got %v", result.Confidence)
	}
	if detector.calls != 1 {
		t.Fatalf("expected only the selfie to be detected, got %d calls", detector.calls)
	}
}

func TestVerifyPrimaryBelowThresholdNotVerified(t *testing.T) {
	// cos(60 degrees) = 0.5, below the 0.6 similarity floor
	detector := &stubDetector{detections: []Detection{{Embedding: []float64{0.5, math.Sqrt(0.75)}}}}
	verifier := NewVerifier(detector, &stubFallback{}, DefaultVerifierConfig(), zap.NewNop())

	docMeta := &Observation{Embedding: []float64{1, 0}}
	result := verifier.Verify(context.Background(), testImage(), docMeta, testImage())

	if result.Method != MethodPrimary {
		t.Fatalf("expected method %s, got %s", MethodPrimary, result.Method)
	}
	if result.Verified {
		t.Fatal("expected similarity 0.5 to fail the 0.6 floor")
	}
	if math.Abs(result.Confidence-0.5) > 1e-9 {
		t.Fatalf("expected confidence 0.5, got %v", result.Confidence)
	}
}

func TestVerifyFallsBackOnPrimaryFailure(t *testing.T) {
	detector := &stubDetector{err: errors.New("engine offline")}
	fallback := &stubFallback{
		encodings: [][][]float64{{{0.1, 0.2}}, {{0.1, 0.3}}},
		distances: []float64{0.3},
	}
	verifier := NewVerifier(detector, fallback, DefaultVerifierConfig(), zap.NewNop())

	result := verifier.Verify(context.Background(), testImage(), nil, testImage())

	if result.Method != MethodFallback {
		t.Fatalf("expected method %s, got %s", MethodFallback, result.Method)
	}
	if !result.Verified {
		t.Fatal("expected distance 0.3 to verify")
	}
	if math.Abs(result.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected confidence 0.7, got %v", result.Confidence)
	}
}

func TestVerifyFallbackPicksMinimumDistance(t *testing.T) {
	detector := &stubDetector{err: errors.New("engine offline")}
	fallback := &stubFallback{
		encodings: [][][]float64{{{0.1}, {0.2}}, {{0.3}}},
		distances: []float64{0.8, 0.25},
	}
	verifier := NewVerifier(detector, fallback, DefaultVerifierConfig(), zap.NewNop())

	result := verifier.Verify(context.Background(), testImage(), nil, testImage())

	if math.Abs(result.Confidence-0.75) > 1e-9 {
		t.Fatalf("expected confidence from min distance 0.25, got %v", result.Confidence)
	}
}

func TestVerifyDoubleFailureReturnsFailedMethod(t *testing.T) {
	detector := &stubDetector{err: errors.New("engine offline")}
	fallback := &stubFallback{encodeErr: errors.New("fallback offline")}
	verifier := NewVerifier(detector, fallback, DefaultVerifierConfig(), zap.NewNop())

	result := verifier.Verify(context.Background(), testImage(), nil, testImage())

	if result.Method != MethodFailed {
		t.Fatalf("expected method %s, got %s", MethodFailed, result.Method)
	}
	if result.Verified {
		t.Fatal("expected failed verification")
	}
	if result.Error != "fallback offline" {
		t.Fatalf("expected last error to surface, got %q", result.Error)
	}
}

func TestVerifyFallbackWhenNoSelfieEmbedding(t *testing.T) {
	detector := &stubDetector{detections: nil}
	fallback := &stubFallback{
		encodings: [][][]float64{{{0.1}}, {{0.2}}},
		distances: []float64{0.5},
	}
	verifier := NewVerifier(detector, fallback, DefaultVerifierConfig(), zap.NewNop())

	docMeta := &Observation{Embedding: []float64{1, 0}}
	result := verifier.Verify(context.Background(), testImage(), docMeta, testImage())

	if result.Method != MethodFallback {
		t.Fatalf("expected fallback when selfie has no embedding, got %s", result.Method)
	}
	if !result.Verified {
		t.Fatal("expected confidence 0.5 to meet the 0.4 threshold")
	}
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Fatalf("expected orthogonal similarity 0, got %v", sim)
	}

	forward, _ := CosineSimilarity([]float64{1, 2, 3}, []float64{4, 5, 6})
	backward, _ := CosineSimilarity([]float64{4, 5, 6}, []float64{1, 2, 3})
	if math.Abs(forward-backward) > 1e-12 {
		t.Fatalf("expected symmetric similarity, got %v and %v", forward, backward)
	}

	if _, err := CosineSimilarity([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, err := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); err == nil {
		t.Fatal("expected zero-magnitude error")
	}
	if _, err := CosineSimilarity(nil, nil); err == nil {
		t.Fatal("expected error for empty embeddings")
	}
}
