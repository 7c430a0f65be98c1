package photo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// MattingClient separates a portrait's foreground from its background.
// Implementations return an image whose alpha channel marks the subject.
type MattingClient interface {
	RemoveBackground(ctx context.Context, raw []byte) (image.Image, error)
}

// HTTPMattingClient calls an external segmentation service that accepts
// raw image bytes and answers with a cut-out PNG.
type HTTPMattingClient struct {
	url    string
	client *http.Client
}

// NewHTTPMattingClient returns a client for the given endpoint, or nil
// when the endpoint is not configured.
func NewHTTPMattingClient(url string) *HTTPMattingClient {
	if url == "" {
		return nil
	}
	return &HTTPMattingClient{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPMattingClient) RemoveBackground(ctx context.Context, raw []byte) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building matting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling matting service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("matting service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding matting response: %w", err)
	}
	return img, nil
}
