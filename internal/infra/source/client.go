// Package source implements the configuration source client: it fetches
// the newest desired-state revision for a target over HTTP.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
)

// Client is an HTTP client for the configuration source API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ repository.ConfigurationSource = (*Client)(nil)

// NewClient creates a new configuration source client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents a structured error response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusNotFound {
		return fmt.Sprintf("not_found:%s", e.Body)
	}
	return fmt.Sprintf("request_failed:%d", e.StatusCode)
}

// revisionResponse is the wire format of the latest-revision endpoint.
type revisionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Revision struct {
			ID         string   `json:"id"`
			Components []string `json:"components"`
			PayloadRef string   `json:"payload_ref"`
		} `json:"revision"`
	} `json:"data"`
}

// FetchLatest returns the newest revision for the target.
func (c *Client) FetchLatest(ctx context.Context, targetID string) (model.Revision, error) {
	endpoint := fmt.Sprintf("%s/api/v1/targets/%s/revisions/latest", c.baseURL, url.PathEscape(targetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Revision{}, fmt.Errorf("failed to build revision request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Revision{}, fmt.Errorf("failed to fetch latest revision for %s: %w", targetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.Revision{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed revisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Revision{}, fmt.Errorf("failed to decode revision response: %w", err)
	}
	if !parsed.Success || parsed.Data.Revision.ID == "" {
		return model.Revision{}, fmt.Errorf("configuration source returned an invalid revision for %s", targetID)
	}

	return model.Revision{
		ID:         parsed.Data.Revision.ID,
		Components: parsed.Data.Revision.Components,
		PayloadRef: parsed.Data.Revision.PayloadRef,
	}, nil
}
