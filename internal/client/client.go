// Package client is an HTTP client for the assignd API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/rules"
)

// Client is an HTTP client for the assignd API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RunRequest describes an automation run to start.
type RunRequest struct {
	AdminPayloads      []rules.AdminPayload     `json:"adminPayloads"`
	TimeOfDay          string                   `json:"timeOfDay,omitempty"`
	CampaignSelections *jobs.CampaignSelections `json:"campaignSelections,omitempty"`
	ExemptionSettings  rules.ExemptionSettings  `json:"exemptionSettings"`
}

// RunResponse is the server's acknowledgement of a started run.
type RunResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobLogs is a job's log stream together with its current status.
type JobLogs struct {
	JobID  string          `json:"jobId"`
	Status jobs.Status     `json:"status"`
	Logs   []jobs.LogEntry `json:"logs"`
}

// StartRun starts an automation run and returns the job handle
func (c *Client) StartRun(ctx context.Context, req RunRequest) (*RunResponse, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/run", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckPlan previews the per-campaign admin assignment without running anything
func (c *Client) CheckPlan(ctx context.Context, req RunRequest) ([]planner.Entry, error) {
	var resp struct {
		Plan []planner.Entry `json:"plan"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/check-plan", req, &resp); err != nil {
		return nil, err
	}
	return resp.Plan, nil
}

// ListJobs retrieves all known jobs, newest first
func (c *Client) ListJobs(ctx context.Context) ([]*jobs.Job, error) {
	var resp struct {
		Jobs []*jobs.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob retrieves a single job by id
func (c *Client) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	var job jobs.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobLogs retrieves a job's log stream
func (c *Client) GetJobLogs(ctx context.Context, jobID string) (*JobLogs, error) {
	var logs JobLogs
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID+"/logs", nil, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

// CancelJob asks the server to stop a running job. Reports false when the job
// had already finished.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	var resp struct {
		JobID     string `json:"jobId"`
		Cancelled bool   `json:"cancelled"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/cancel", nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// ReplaceUserRules replaces the user rule layer. Requires the admin API key.
func (c *Client) ReplaceUserRules(ctx context.Context, userRules []rules.Rule) (int, error) {
	var resp struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/rules/user", userRules, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// GetConfig retrieves the server's effective campaign configuration
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Version retrieves the server version
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp["version"], nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
