package face

import (
	"context"
	"errors"
	"image"
	"testing"

	"go.uber.org/zap"
)

type stubCascade struct {
	boxes []image.Rectangle
	err   error
	calls int
}

func (s *stubCascade) DetectBoxes(ctx context.Context, gray *image.Gray) ([]image.Rectangle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.boxes, nil
}

func documentImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func TestExtractPicksHighestScoringDetection(t *testing.T) {
	detector := &stubDetector{detections: []Detection{
		{Box: image.Rect(2, 2, 12, 12), DetScore: 0.55},
		{Box: image.Rect(20, 10, 40, 30), DetScore: 0.92, Embedding: []float64{0.1, 0.2}},
	}}
	cascade := &stubCascade{}
	extractor := NewExtractor(detector, cascade, DefaultExtractorConfig(), zap.NewNop())

	obs := extractor.ExtractFromDocument(context.Background(), documentImage(), DocumentPassport)
	if obs == nil {
		t.Fatal("expected an observation")
	}
	if obs.Method != extractMethodPrimary {
		t.Fatalf("expected primary method, got %s", obs.Method)
	}
	if obs.Box != image.Rect(20, 10, 40, 30) {
		t.Fatalf("expected highest-score box, got %v", obs.Box)
	}
	if obs.DetScore != 0.92 {
		t.Fatalf("expected det score 0.92, got %v", obs.DetScore)
	}
	if len(obs.Embedding) != 2 {
		t.Fatalf("expected embedding to be carried, got %v", obs.Embedding)
	}
	if cascade.calls != 0 {
		t.Fatalf("expected cascade to be skipped, got %d calls", cascade.calls)
	}

	bounds := obs.Image.Bounds()
	if bounds.Dx() != 112 || bounds.Dy() != 112 {
		t.Fatalf("expected 112x112 enhanced crop, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestExtractFallsBackToCascadeLargestBox(t *testing.T) {
	detector := &stubDetector{detections: nil}
	cascade := &stubCascade{boxes: []image.Rectangle{
		image.Rect(0, 0, 5, 5),
		image.Rect(10, 10, 40, 40),
	}}
	extractor := NewExtractor(detector, cascade, DefaultExtractorConfig(), zap.NewNop())

	obs := extractor.ExtractFromDocument(context.Background(), documentImage(), DocumentPassport)
	if obs == nil {
		t.Fatal("expected an observation")
	}
	if obs.Method != extractMethodCascade {
		t.Fatalf("expected cascade method, got %s", obs.Method)
	}
	if obs.Box != image.Rect(10, 10, 40, 40) {
		t.Fatalf("expected largest box, got %v", obs.Box)
	}
	if obs.DetScore != cascadeDetScore {
		t.Fatalf("expected synthetic det score %v, got %v", cascadeDetScore, obs.DetScore)
	}
	if obs.Embedding != nil {
		t.Fatalf("expected no embedding from cascade, got %v", obs.Embedding)
	}
}

func TestExtractReturnsNilWhenNoFace(t *testing.T) {
	extractor := NewExtractor(&stubDetector{}, &stubCascade{}, DefaultExtractorConfig(), zap.NewNop())

	if obs := extractor.ExtractFromDocument(context.Background(), documentImage(), DocumentPassport); obs != nil {
		t.Fatalf("expected nil observation, got %+v", obs)
	}
}

func TestExtractFoldsEngineErrorsIntoNoFace(t *testing.T) {
	detector := &stubDetector{err: errors.New("engine offline")}
	cascade := &stubCascade{err: errors.New("cascade offline")}
	extractor := NewExtractor(detector, cascade, DefaultExtractorConfig(), zap.NewNop())

	if obs := extractor.ExtractFromDocument(context.Background(), documentImage(), DocumentPassport); obs != nil {
		t.Fatalf("expected nil observation on engine failure, got %+v", obs)
	}
	if detector.calls != 1 || cascade.calls != 1 {
		t.Fatalf("expected both detectors to be tried, got %d and %d", detector.calls, cascade.calls)
	}
}

func TestRegionOfInterestPerDocumentType(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 500)

	passport := regionOfInterest(bounds, DocumentPassport)
	if passport != image.Rect(50, 150, 350, 400) {
		t.Fatalf("unexpected passport region: %v", passport)
	}

	idCard := regionOfInterest(bounds, DocumentIDCard)
	if idCard != image.Rect(50, 100, 450, 400) {
		t.Fatalf("unexpected id card region: %v", idCard)
	}
}

func TestPadBoxClampsToBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 50, 50)

	padded := padBox(image.Rect(5, 5, 15, 15), 20, bounds)
	if padded != image.Rect(0, 0, 35, 35) {
		t.Fatalf("expected clamped padding, got %v", padded)
	}
}
