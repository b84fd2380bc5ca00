// Package triage contains the clients for the triage backend: a REST
// client for polled snapshots and a websocket client for the push channel.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/triagewatch/triagewatch/internal/domain"
)

// Client is the REST client for the triage backend's dashboard endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL replaces the backend base URL (used by tests and reconfiguration).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	u := c.baseURL + path
	if params != nil {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// Stats fetches GET /api/dashboard/stats.
func (c *Client) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var s domain.DashboardStats
	return s, c.get(ctx, "/api/dashboard/stats", nil, &s)
}

// Patients fetches GET /api/patients?limit=N, most recent first.
func (c *Client) Patients(ctx context.Context, limit int) ([]domain.AssessmentRecord, error) {
	var records []domain.AssessmentRecord
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	return records, c.get(ctx, "/api/patients", params, &records)
}

// Insights fetches GET /api/insights.
func (c *Client) Insights(ctx context.Context) (domain.InsightsSnapshot, error) {
	var ins domain.InsightsSnapshot
	return ins, c.get(ctx, "/api/insights", nil, &ins)
}
