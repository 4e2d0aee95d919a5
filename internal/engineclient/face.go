package engineclient

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/face"
	"github.com/example/docverify/internal/logging"
)

// FaceClient talks to the face-detection/embedding sidecar. It serves both
// the primary detector and the classical cascade fallback, which the sidecar
// exposes as separate endpoints.
type FaceClient struct {
	http *httpClient
}

// NewFaceClient returns a client for the face engine at the given base URL.
func NewFaceClient(baseURL string, logger *zap.Logger) *FaceClient {
	return &FaceClient{http: newHTTPClient(baseURL, logger.Named("face_client"))}
}

type detectRequest struct {
	Image string `json:"image"`
}

type boxPayload struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type pointPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type detectResponse struct {
	Faces []struct {
		Box       boxPayload     `json:"bbox"`
		DetScore  float64        `json:"det_score"`
		Embedding []float64      `json:"embedding,omitempty"`
		Landmarks []pointPayload `json:"landmarks,omitempty"`
		Age       *int           `json:"age,omitempty"`
		Gender    *int           `json:"gender,omitempty"`
	} `json:"faces"`
}

// Detect returns every face the engine finds in the image.
func (c *FaceClient) Detect(ctx context.Context, img image.Image) ([]face.Detection, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return nil, logging.NewOperationError("face_client.detect", "", err)
	}

	var resp detectResponse
	if err := c.http.postJSON(ctx, "face_client.detect", "/detect", detectRequest{Image: encoded}, &resp); err != nil {
		return nil, err
	}

	detections := make([]face.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		d := face.Detection{
			Box:       image.Rect(f.Box.X, f.Box.Y, f.Box.X+f.Box.Width, f.Box.Y+f.Box.Height),
			DetScore:  f.DetScore,
			Embedding: f.Embedding,
			Age:       f.Age,
			Gender:    f.Gender,
		}
		for _, p := range f.Landmarks {
			d.Landmarks = append(d.Landmarks, image.Pt(p.X, p.Y))
		}
		detections = append(detections, d)
	}
	return detections, nil
}

type detectBoxesResponse struct {
	Boxes []boxPayload `json:"boxes"`
}

// DetectBoxes runs the classical cascade detector on a grayscale image.
func (c *FaceClient) DetectBoxes(ctx context.Context, gray *image.Gray) ([]image.Rectangle, error) {
	encoded, err := encodeImage(gray)
	if err != nil {
		return nil, logging.NewOperationError("face_client.detect_boxes", "", err)
	}

	var resp detectBoxesResponse
	if err := c.http.postJSON(ctx, "face_client.detect_boxes", "/detect-boxes", detectRequest{Image: encoded}, &resp); err != nil {
		return nil, err
	}

	boxes := make([]image.Rectangle, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		boxes = append(boxes, image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height))
	}
	return boxes, nil
}
