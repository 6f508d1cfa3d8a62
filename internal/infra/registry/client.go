// Package registry implements the issue registry client used by the risk
// check to look up known defects for a revision's components.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
)

// Client is an HTTP client for the issue registry API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ repository.IssueRegistry = (*Client)(nil)

// NewClient creates a new issue registry client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type queryRequest struct {
	Components []string `json:"components"`
}

type queryResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Issues []issueRecord `json:"issues"`
	} `json:"data"`
}

type issueRecord struct {
	Component      string `json:"component"`
	Severity       string `json:"severity"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// QueryIssues returns all known issue reports for the given components.
// Transport-level failures are wrapped in ErrRegistryUnreachable so the
// caller can apply its fail-open policy; malformed responses are returned
// verbatim since they indicate a registry bug rather than downtime.
func (c *Client) QueryIssues(ctx context.Context, components []string) ([]model.IssueReport, error) {
	if len(components) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(queryRequest{Components: components})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue query: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/issues/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build issue query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrRegistryUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status code %d", repository.ErrRegistryUnreachable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("issue registry rejected query: status %d: %s", resp.StatusCode, body)
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode issue registry response: %w", err)
	}

	reports := make([]model.IssueReport, 0, len(parsed.Data.Issues))
	for _, rec := range parsed.Data.Issues {
		reports = append(reports, model.IssueReport{
			Component:      rec.Component,
			Severity:       model.Severity(rec.Severity),
			Summary:        rec.Summary,
			Recommendation: model.Recommendation(rec.Recommendation),
		})
	}
	return reports, nil
}
