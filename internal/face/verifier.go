package face

import (
	"context"
	"errors"
	"image"
	"math"

	"go.uber.org/zap"
)

// Verification methods.
const (
	MethodPrimary  = "primary"
	MethodFallback = "fallback"
	MethodFailed   = "failed"
)

// VerificationResult is the terminal output of face comparison. Errors never
// cross the verifier boundary; a double failure surfaces as method "failed"
// with the underlying message.
type VerificationResult struct {
	Verified      bool     `json:"verified"`
	Confidence    float64  `json:"confidence"`
	Method        string   `json:"method"`
	LivenessScore *float64 `json:"liveness_score,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// VerifierConfig tunes the comparison thresholds. Threshold is a distance:
// the primary path requires cosine similarity >= 1-Threshold, the fallback
// path requires (1 - minimum encoding distance) >= Threshold's complement
// applied the same way its source library does.
type VerifierConfig struct {
	Threshold float64
}

// DefaultVerifierConfig uses the embedding engine's recommended margin.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{Threshold: 0.4}
}

// comparator is the single compare contract both verification paths
// implement; the verifier selects between them with a fallback chain.
type comparator interface {
	compare(ctx context.Context, docFace image.Image, docMeta *Observation, selfie image.Image) (confidence float64, verified bool, err error)
}

// Verifier compares a document face against a second face image.
type Verifier struct {
	primary  comparator
	fallback comparator
	logger   *zap.Logger
}

// NewVerifier constructs a verifier with the embedding-based primary path and
// the distance-based fallback path.
func NewVerifier(detector Detector, fallback FallbackComparator, cfg VerifierConfig, logger *zap.Logger) *Verifier {
	return &Verifier{
		primary:  &embeddingComparator{detector: detector, threshold: cfg.Threshold},
		fallback: &distanceComparator{comparator: fallback, threshold: cfg.Threshold},
		logger:   logger.Named("face_verifier"),
	}
}

// Verify runs the primary comparison and falls back to the distance-based
// path on any primary failure, including missing embeddings. Only when both
// paths fail does it return a failed result carrying the last error.
func (v *Verifier) Verify(ctx context.Context, docFace image.Image, docMeta *Observation, selfie image.Image) VerificationResult {
	confidence, verified, err := v.primary.compare(ctx, docFace, docMeta, selfie)
	if err == nil {
		return VerificationResult{Verified: verified, Confidence: confidence, Method: MethodPrimary}
	}
	v.logger.Warn("primary face comparison failed", zap.Error(err))

	confidence, verified, err = v.fallback.compare(ctx, docFace, docMeta, selfie)
	if err == nil {
		return VerificationResult{Verified: verified, Confidence: confidence, Method: MethodFallback}
	}
	v.logger.Error("fallback face comparison failed", zap.Error(err))

	return VerificationResult{Verified: false, Confidence: 0, Method: MethodFailed, Error: err.Error()}
}

// embeddingComparator compares faces by cosine similarity of engine
// embeddings, reusing the document embedding computed during extraction when
// available.
type embeddingComparator struct {
	detector  Detector
	threshold float64
}

func (c *embeddingComparator) compare(ctx context.Context, docFace image.Image, docMeta *Observation, selfie image.Image) (float64, bool, error) {
	docEmbedding, err := c.documentEmbedding(ctx, docFace, docMeta)
	if err != nil {
		return 0, false, err
	}

	selfieFaces, err := c.detector.Detect(ctx, selfie)
	if err != nil {
		return 0, false, err
	}
	if len(selfieFaces) == 0 || len(selfieFaces[0].Embedding) == 0 {
		return 0, false, errors.New("no face embedding in second image")
	}

	similarity, err := CosineSimilarity(docEmbedding, selfieFaces[0].Embedding)
	if err != nil {
		return 0, false, err
	}
	return similarity, similarity >= 1-c.threshold, nil
}

func (c *embeddingComparator) documentEmbedding(ctx context.Context, docFace image.Image, docMeta *Observation) ([]float64, error) {
	if docMeta != nil && len(docMeta.Embedding) > 0 {
		return docMeta.Embedding, nil
	}
	faces, err := c.detector.Detect(ctx, docFace)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 || len(faces[0].Embedding) == 0 {
		return nil, errors.New("no face embedding in document image")
	}
	return faces[0].Embedding, nil
}

// distanceComparator compares faces through the fallback library's encodings,
// converting its minimum pairwise distance to a confidence.
type distanceComparator struct {
	comparator FallbackComparator
	threshold  float64
}

func (c *distanceComparator) compare(ctx context.Context, docFace image.Image, _ *Observation, selfie image.Image) (float64, bool, error) {
	docEncodings, err := c.comparator.Encode(ctx, docFace)
	if err != nil {
		return 0, false, err
	}
	selfieEncodings, err := c.comparator.Encode(ctx, selfie)
	if err != nil {
		return 0, false, err
	}
	if len(docEncodings) == 0 || len(selfieEncodings) == 0 {
		return 0, false, errors.New("could not find face in one or both images")
	}

	distances := c.comparator.Distance(docEncodings, selfieEncodings[0])
	if len(distances) == 0 {
		return 0, false, errors.New("no comparable encodings")
	}
	minDistance := distances[0]
	for _, d := range distances[1:] {
		if d < minDistance {
			minDistance = d
		}
	}

	confidence := 1 - minDistance
	return confidence, confidence >= c.threshold, nil
}

// CosineSimilarity computes the cosine of the angle between two embeddings.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, errors.New("embedding dimension mismatch")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("zero-magnitude embedding")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
