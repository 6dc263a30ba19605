// Package client is the worker-side view of the control surface. Calls are
// best-effort: a transport or non-2xx failure is returned as-is and aborts the
// current run; retrying is left to whoever resubmits the job.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ingest-control-plane/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// PatchJobRequest mirrors the patch endpoint body. Timestamps are ISO-8601
// strings with a trailing Z, the way the server expects them.
type PatchJobRequest struct {
	Status     *string        `json:"status,omitempty"`
	StartedAt  *string        `json:"started_at,omitempty"`
	FinishedAt *string        `json:"finished_at,omitempty"`
	Checkpoint *string        `json:"checkpoint,omitempty"`
	Metrics    models.JSONMap `json:"metrics,omitempty"`
}

func (c *Client) ListQueuedJobs(limit int) ([]models.Job, error) {
	endpoint := fmt.Sprintf("%s/api/ingestions?status=%s&limit=%d",
		c.baseURL, url.QueryEscape(string(models.StatusQueued)), limit)
	resp, err := c.http.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list queued jobs", resp)
	}

	var jobs []models.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) GetSource(sourceID string) (*models.Source, error) {
	resp, err := c.http.Get(c.baseURL + "/api/sources/" + sourceID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get source", resp)
	}

	var src models.Source
	if err := json.NewDecoder(resp.Body).Decode(&src); err != nil {
		return nil, err
	}
	return &src, nil
}

func (c *Client) PatchJob(jobID string, patch PatchJobRequest) (*models.Job, error) {
	body, _ := json.Marshal(patch)
	req, err := http.NewRequest(http.MethodPatch, c.baseURL+"/api/ingestions/"+jobID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("patch job", resp)
	}

	var job models.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) PostEvent(jobID, eventType string, payload models.JSONMap) error {
	body, _ := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	resp, err := c.http.Post(c.baseURL+"/api/ingestions/"+jobID+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return statusError("post event", resp)
	}
	return nil
}

func (c *Client) PostError(jobID, code, message string, retryable bool) error {
	body, _ := json.Marshal(map[string]interface{}{
		"code":      code,
		"message":   message,
		"retryable": retryable,
	})
	resp, err := c.http.Post(c.baseURL+"/api/ingestions/"+jobID+"/errors", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return statusError("post error", resp)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s failed: %d %s", op, resp.StatusCode, bytes.TrimSpace(body))
}
