package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"avl-svr/internal/pipeline"
)

var ErrIngestStatus = errors.New("ingest API returned non-2xx")

// HTTPIngester posts {external_id, codec, batch} to the ingestion API.
type HTTPIngester struct {
	url    string
	client *http.Client
}

func NewHTTPIngester(url string, timeout time.Duration) *HTTPIngester {
	return &HTTPIngester{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPIngester) Ingest(ctx context.Context, b pipeline.Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrIngestStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
