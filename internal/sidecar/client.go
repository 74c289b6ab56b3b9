package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"researchdesk/pkg/domain"
)

const probeTimeout = 2 * time.Second

// Client calls the local sidecar service that executes searches the core
// cannot perform directly (CORS-restricted or scrape-based sources).
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	status Status
}

// Status is the recorded outcome of the last reachability probe.
type Status struct {
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checkedAt"`
}

// APIError represents a sidecar error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a sidecar client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check probes the sidecar's status endpoint with a short timeout and
// records the outcome. Any failure, including a network error, counts as
// unreachable.
func (c *Client) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	reachable := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/api/models", nil)
	if err == nil {
		resp, err := c.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			reachable = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}

	st := Status{Reachable: reachable, CheckedAt: time.Now().UTC()}
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
	return st
}

// Status returns the last recorded probe outcome. A zero CheckedAt means no
// probe has run yet.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Reachable reports the last probe outcome.
func (c *Client) Reachable() bool {
	return c.Status().Reachable
}

type searchRequest struct {
	Query     string  `json:"query"`
	Providers []int64 `json:"providers"`
}

// Search sends one batched query for all proxy-relayed providers and
// returns the sidecar's results verbatim.
func (c *Client) Search(ctx context.Context, query string, providerIDs []int64) ([]domain.SearchResult, error) {
	payload := searchRequest{Query: query, Providers: providerIDs}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/proxy/search", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var results []domain.SearchResult
	if err := c.do(req, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
