package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Classifier scores how likely an image is to be unsafe, in [0, 1].
type Classifier interface {
	Analyze(ctx context.Context, imageURL string) (float64, error)
}

// HTTPClassifier calls an external NSFW detection service.
type HTTPClassifier struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	UnsafeScore float64 `json:"unsafe_score"`
}

// Analyze posts the image URL to the service and returns its unsafe score.
func (c *HTTPClassifier) Analyze(ctx context.Context, imageURL string) (float64, error) {
	body, err := json.Marshal(analyzeRequest{URL: imageURL})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var res analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return res.UnsafeScore, nil
}
