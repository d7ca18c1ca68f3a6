package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/tagpose/internal/httputil"
	"github.com/banshee-data/tagpose/internal/pipeline"
)

// Client queries a running tracker's monitor endpoints.
type Client struct {
	HTTPClient httputil.HTTPClient
	BaseURL    string
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8080".
func NewClient(httpClient httputil.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{HTTPClient: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Stats fetches the pipeline counters.
func (c *Client) Stats(ctx context.Context) (pipeline.StatsSnapshot, error) {
	var s pipeline.StatsSnapshot
	err := c.do(ctx, http.MethodGet, "/api/stats", &s)
	return s, err
}

// Latest fetches the most recent frame report.
func (c *Client) Latest(ctx context.Context) (pipeline.FrameReport, error) {
	var r pipeline.FrameReport
	err := c.do(ctx, http.MethodGet, "/api/latest", &r)
	return r, err
}

// Snapshot asks the tracker to write a snapshot and returns its path.
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/snapshot", &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

func (c *Client) do(ctx context.Context, method, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
