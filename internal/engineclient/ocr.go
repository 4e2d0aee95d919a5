package engineclient

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/logging"
	"github.com/example/docverify/internal/ocr"
)

// OCRClient talks to the text-recognition sidecar.
type OCRClient struct {
	http *httpClient
}

// NewOCRClient returns an ocr.Engine backed by the recognition service at
// the given base URL.
func NewOCRClient(baseURL string, logger *zap.Logger) *OCRClient {
	return &OCRClient{http: newHTTPClient(baseURL, logger.Named("ocr_client"))}
}

type recognizeRequest struct {
	Image    string `json:"image"`
	PageMode int    `json:"page_mode"`
	Language string `json:"language,omitempty"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// Recognize runs one recognition pass under the given configuration.
func (c *OCRClient) Recognize(ctx context.Context, img image.Image, cfg ocr.ModeConfig) (string, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return "", logging.NewOperationError("ocr_client.recognize", "", err)
	}

	var resp recognizeResponse
	req := recognizeRequest{Image: encoded, PageMode: int(cfg.PageMode), Language: cfg.Language}
	if err := c.http.postJSON(ctx, "ocr_client.recognize", "/recognize", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

type recognizeDataResponse struct {
	Tokens []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"tokens"`
}

// RecognizeWithConfidence returns per-token confidences for a single pass.
func (c *OCRClient) RecognizeWithConfidence(ctx context.Context, img image.Image) ([]ocr.Token, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return nil, logging.NewOperationError("ocr_client.recognize_data", "", err)
	}

	var resp recognizeDataResponse
	req := recognizeRequest{Image: encoded, PageMode: int(ocr.ModeStandard)}
	if err := c.http.postJSON(ctx, "ocr_client.recognize_data", "/recognize-data", req, &resp); err != nil {
		return nil, err
	}

	tokens := make([]ocr.Token, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		tokens = append(tokens, ocr.Token{Text: t.Text, Confidence: t.Confidence})
	}
	return tokens, nil
}
