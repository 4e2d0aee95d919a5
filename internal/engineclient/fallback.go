package engineclient

import (
	"context"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/logging"
)

// FallbackClient talks to the distance-based face-recognition sidecar used
// when the primary embedding path fails. Its encodings live in a different
// vector space than the primary engine's embeddings.
type FallbackClient struct {
	http *httpClient
}

// NewFallbackClient returns a client for the fallback comparator service.
func NewFallbackClient(baseURL string, logger *zap.Logger) *FallbackClient {
	return &FallbackClient{http: newHTTPClient(baseURL, logger.Named("fallback_client"))}
}

type encodeRequest struct {
	Image string `json:"image"`
}

type encodeResponse struct {
	Encodings [][]float64 `json:"encodings"`
}

// Encode returns one encoding per face found in the image.
func (c *FallbackClient) Encode(ctx context.Context, img image.Image) ([][]float64, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return nil, logging.NewOperationError("fallback_client.encode", "", err)
	}

	var resp encodeResponse
	if err := c.http.postJSON(ctx, "fallback_client.encode", "/encode", encodeRequest{Image: encoded}, &resp); err != nil {
		return nil, err
	}
	return resp.Encodings, nil
}

// Distance computes the Euclidean distance from the probe to each known
// encoding, matching the comparator library's semantics.
func (c *FallbackClient) Distance(known [][]float64, probe []float64) []float64 {
	distances := make([]float64, 0, len(known))
	for _, encoding := range known {
		if len(encoding) != len(probe) {
			continue
		}
		var sum float64
		for i := range encoding {
			d := encoding[i] - probe[i]
			sum += d * d
		}
		distances = append(distances, math.Sqrt(sum))
	}
	return distances
}
