package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"xray-analyzer/internal/analysis"
)

const maxResponseBytes = 1 << 20

type captionResponse struct {
	GeneratedText string   `json:"generated_text"`
	Score         *float64 `json:"score"`
	Error         string   `json:"error"`
}

type errorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

type attemptResult struct {
	outcome outcome
	vision  analysis.Vision
	err     error
}

// attempt posts the image once to the model endpoint and classifies the
// response.
func (c *Client) attempt(ctx context.Context, modelName string, image []byte, defaultConfidence float64) attemptResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return attemptResult{outcome: outcomeFatal, err: fmt.Errorf("rate limiter: %w", err)}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + modelName
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return attemptResult{outcome: outcomeFatal, err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return attemptResult{outcome: outcomeRetryable, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return attemptResult{outcome: outcomeRetryable, err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, body)
	}
	return parseCaption(body, modelName, defaultConfidence)
}

func classifyStatus(status int, body []byte) attemptResult {
	msg := errorMessage(body)
	err := fmt.Errorf("inference API error: %d - %s", status, msg)

	switch {
	case isLoading(msg):
		return attemptResult{outcome: outcomeLoading, err: err}
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return attemptResult{outcome: outcomeRetryable, err: err}
	default:
		return attemptResult{outcome: outcomeFatal, err: err}
	}
}

func parseCaption(body []byte, modelName string, defaultConfidence float64) attemptResult {
	var captions []captionResponse
	if err := json.Unmarshal(body, &captions); err != nil {
		// the service reports errors as an object even on 2xx
		if msg := bodyError(body); msg != "" {
			return errorInBody(msg)
		}
		return attemptResult{outcome: outcomeFatal, err: fmt.Errorf("invalid inference response: %w", err)}
	}
	if len(captions) == 0 {
		return attemptResult{outcome: outcomeFatal, err: fmt.Errorf("empty inference response")}
	}

	first := captions[0]
	if first.Error != "" {
		return errorInBody(first.Error)
	}

	text := strings.TrimSpace(first.GeneratedText)
	if text == "" {
		return attemptResult{outcome: outcomeFatal, err: fmt.Errorf("inference response has no caption")}
	}

	confidence := defaultConfidence
	if first.Score != nil {
		confidence = clamp(*first.Score, minServiceConfidence, maxServiceConfidence)
	}

	return attemptResult{
		outcome: outcomeSuccess,
		vision:  analysis.Vision{Description: text, Confidence: confidence, Model: modelName},
	}
}

func errorInBody(msg string) attemptResult {
	err := fmt.Errorf("inference API error: %s", msg)
	if isLoading(msg) {
		return attemptResult{outcome: outcomeLoading, err: err}
	}
	return attemptResult{outcome: outcomeRetryable, err: err}
}

func errorMessage(body []byte) string {
	if msg := bodyError(body); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(body))
}

// bodyError extracts the error field of an object or single-element list.
func bodyError(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	var list []errorResponse
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 && list[0].Error != "" {
		return list[0].Error
	}
	return ""
}

func isLoading(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "loading")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
