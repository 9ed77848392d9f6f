package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"gallery/internal/domain"
)

// RemoteExtractor calls a TensorFlow Serving REST endpoint that hosts
// ResNet-50 without its classification head (global average pooling).
type RemoteExtractor struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

func NewRemoteExtractor(baseURL, model string, dimension int, timeout time.Duration) (*RemoteExtractor, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote extractor requires an endpoint")
	}
	if model == "" {
		model = "resnet50"
	}
	if dimension <= 0 {
		dimension = 2048
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &RemoteExtractor{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (e *RemoteExtractor) Extract(ctx context.Context, img image.Image) (domain.FeatureVector, error) {
	t, err := Preprocess(img)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(predictRequest{Instances: [][][][3]float32{t.Nested()}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, preview(body))
	}

	var predResp predictResponse
	if err := json.Unmarshal(body, &predResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("model server error: %s", predResp.Error)
	}
	if len(predResp.Predictions) != 1 {
		return nil, fmt.Errorf("expected 1 prediction, got %d", len(predResp.Predictions))
	}

	vec := predResp.Predictions[0]
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", e.dimension, len(vec))
	}
	return vec, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (e *RemoteExtractor) Dimension() int {
	return e.dimension
}

func (e *RemoteExtractor) ModelName() string {
	return e.model
}
