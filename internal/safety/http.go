package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPChecker calls a moderation endpoint that returns a flagged/rewrite
// verdict for a single piece of text. On any transport or decode error it
// falls back to LocalChecker rather than propagate the error, so callers
// always receive a usable result.
type HTTPChecker struct {
	url    string
	client *http.Client
	local  LocalChecker
}

func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPChecker{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Text string `json:"text"`
}

type checkResponse struct {
	Flagged    bool    `json:"flagged"`
	Category   string  `json:"category"`
	SafeText   string  `json:"safe_text"`
	Confidence float64 `json:"confidence"`
}

func (c *HTTPChecker) Check(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(checkRequest{Text: text})
	if err != nil {
		return c.local.Check(ctx, text)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return c.local.Check(ctx, text)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return c.local.Check(ctx, text)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.local.Check(ctx, text)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return c.local.Check(ctx, text)
	}

	var decoded checkResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return c.local.Check(ctx, text)
	}

	safe := decoded.SafeText
	if safe == "" && !decoded.Flagged {
		safe = text
	}

	return Result{
		Flagged:    decoded.Flagged,
		Category:   decoded.Category,
		Original:   text,
		SafeText:   safe,
		Confidence: decoded.Confidence,
	}, nil
}
