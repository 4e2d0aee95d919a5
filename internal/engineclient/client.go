// Package engineclient provides HTTP clients for the external recognition
// sidecars: the text-recognition engine, the face-detection/embedding engine
// and the fallback face comparator. Images travel as base64-encoded PNG in
// JSON payloads.
package engineclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/logging"
)

const defaultTimeout = 30 * time.Second

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func newHTTPClient(baseURL string, logger *zap.Logger) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// postJSON sends the payload and decodes the JSON response into out.
func (c *httpClient) postJSON(ctx context.Context, operation, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return logging.NewOperationError(operation, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return logging.NewOperationError(operation, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError(operation, "", err)
		c.logger.Error("engine call failed", zap.Error(wrapped), zap.String("path", path))
		return wrapped
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return logging.NewOperationError(operation, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("engine returned status %d: %s", resp.StatusCode, truncate(data, 256))
		wrapped := logging.NewOperationError(operation, "", err)
		c.logger.Error("engine call failed", zap.Error(wrapped), zap.String("path", path))
		return wrapped
	}
	if err := json.Unmarshal(data, out); err != nil {
		return logging.NewOperationError(operation, "", err)
	}
	return nil
}

func encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func truncate(data []byte, limit int) string {
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data)
}
