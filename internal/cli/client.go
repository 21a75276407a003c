package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (duplicated from internal/api/dto.go: the CLI talks
// HTTP only, it never imports the engine's internal packages) ---

// JobResponse mirrors api.JobResponse.
type JobResponse struct {
	ID                  string `json:"id"`
	Priority            string `json:"priority"`
	Status              string `json:"status"`
	Attempts            int    `json:"attempts"`
	MaxAttempts         int    `json:"max_attempts"`
	AssignedExtensionID string `json:"assigned_extension_id,omitempty"`
	Error               string `json:"error,omitempty"`
	CorrelationID       string `json:"correlation_id"`
	CreatedAt           string `json:"created_at"`
}

// QueueStatusResponse mirrors api.QueueStatusResponse.
type QueueStatusResponse struct {
	Depths         map[string]int `json:"lane_depths"`
	InFlightCount  int            `json:"in_flight_count"`
	DLQCount       int            `json:"dlq_size"`
	TokensAvailable float64       `json:"current_rate_tokens"`
}

// SessionResponse describes a connected extension session.
type SessionResponse struct {
	ID                 string   `json:"id"`
	Status             string   `json:"status"`
	Capabilities       []string `json:"capabilities,omitempty"`
	InFlightCount      int      `json:"in_flight_count"`
	AvgResponseTimeMs  float64  `json:"avg_response_time_ms"`
	ConnectedAt        string   `json:"connected_at"`
}

// --- Request types ---

// EnqueueRequest mirrors api.EnqueueRequest.
type EnqueueRequest struct {
	URL         string            `json:"url"`
	Priority    string            `json:"priority,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	AddonID     string            `json:"addon_id,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	AITool      string            `json:"ai_tool,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is an HTTP client for dispatch-engine's admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client targeting baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Queue ---

// Enqueue submits a new job.
func (c *Client) Enqueue(req EnqueueRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/queue/enqueue", req, &job)
	return &job, err
}

// QueueStatus returns the current queue/rate-limiter snapshot.
func (c *Client) QueueStatus() (*QueueStatusResponse, error) {
	var status QueueStatusResponse
	err := c.getData("/queue/status", &status)
	return &status, err
}

// GetJob returns a single job by ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/queue/item/"+id, &job)
	return &job, err
}

// CancelJob cancels a pending job.
func (c *Client) CancelJob(id string) error {
	return c.delete("/queue/item/" + id)
}

// --- DLQ ---

// ListDLQ returns every job currently in the dead letter queue.
func (c *Client) ListDLQ() ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/queue/dlq", nil, &jobs)
	return jobs, err
}

// RetryDLQItem requeues a DLQ entry for another attempt.
func (c *Client) RetryDLQItem(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/queue/dlq/"+id+"/retry", nil, &job)
	return &job, err
}

// PurgeDLQ deletes every DLQ entry. Only an error is returned; the purged
// count in the response body is not decoded.
func (c *Client) PurgeDLQ() error {
	return c.delete("/queue/dlq")
}

// --- Sessions ---

// ListSessions returns every registered extension session.
func (c *Client) ListSessions() ([]SessionResponse, error) {
	var sessions []SessionResponse
	err := c.list("/sessions", nil, &sessions)
	return sessions, err
}

// --- Admin ---

// Drain stops the dispatcher from binding new work, ahead of a shutdown.
func (c *Client) Drain() error {
	return c.doData(http.MethodPost, "/admin/drain", nil, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

// getData fetches a single-object endpoint wrapped in {"data": ...}.
func (c *Client) getData(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
