package bountylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Bountyline HTTP API client.
type Client struct {
	BaseURL     string
	SpaceID     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, spaceID string) *Client {
	return &Client{
		BaseURL: baseURL,
		SpaceID: spaceID,
		Timeout: 10 * time.Second,
	}
}

// Reward represents the API reward model (partial).
type Reward struct {
	ID             string   `json:"id"`
	SpaceID        string   `json:"space_id"`
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	RewardType     string   `json:"reward_type"`
	MaxSubmissions *int     `json:"max_submissions,omitempty"`
	RewardAmount   *float64 `json:"reward_amount,omitempty"`
	RewardToken    *string  `json:"reward_token,omitempty"`
	CustomReward   *string  `json:"custom_reward,omitempty"`
}

// Application represents work against a reward.
type Application struct {
	ID         string  `json:"id"`
	RewardID   string  `json:"reward_id"`
	SpaceID    string  `json:"space_id"`
	CreatedBy  string  `json:"created_by"`
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	Submission *string `json:"submission,omitempty"`
	AcceptedBy *string `json:"accepted_by,omitempty"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	SpaceID    string         `json:"space_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// WorkflowStep is a single evaluation in a reward's workflow.
type WorkflowStep struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Type   string  `json:"type"`
	Result *string `json:"result,omitempty"`
}

// Workflow is the inferred step sequence for a reward.
type Workflow struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Evaluations []WorkflowStep `json:"evaluations"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedRewards wraps reward listings with a cursor.
type PaginatedRewards struct {
	Items      []Reward `json:"items"`
	NextCursor string   `json:"next_cursor"`
}

// PaginatedApplications wraps application listings.
type PaginatedApplications struct {
	Items []Application `json:"items"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateReward creates a reward in the client's space.
func (c *Client) CreateReward(ctx context.Context, body map[string]any) (Reward, error) {
	var resp Reward
	err := c.do(ctx, http.MethodPost, c.spacePath("rewards"), body, &resp)
	return resp, err
}

// GetReward fetches a reward by id.
func (c *Client) GetReward(ctx context.Context, id string) (Reward, error) {
	var resp Reward
	err := c.do(ctx, http.MethodGet, "v0/rewards/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Rewards returns a page of rewards for the space.
func (c *Client) Rewards(ctx context.Context, limit int, cursor string) (PaginatedRewards, error) {
	endpoint := c.spacePath("rewards")
	endpoint = withQuery(endpoint, limit, cursor)
	var resp PaginatedRewards
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// PublishReward validates and opens a reward.
func (c *Client) PublishReward(ctx context.Context, id string, body map[string]any) (Reward, error) {
	if body == nil {
		body = map[string]any{}
	}
	var resp Reward
	err := c.do(ctx, http.MethodPost, "v0/rewards/"+url.PathEscape(id)+"/publish", body, &resp)
	return resp, err
}

// CloseOutReward rejects unresolved applications and completes the reward.
func (c *Client) CloseOutReward(ctx context.Context, id string) (Reward, error) {
	var resp Reward
	err := c.do(ctx, http.MethodPost, "v0/rewards/"+url.PathEscape(id)+"/close", map[string]any{}, &resp)
	return resp, err
}

// MarkRewardAsPaid bulk-pays a reward.
func (c *Client) MarkRewardAsPaid(ctx context.Context, id string) (Reward, error) {
	var resp Reward
	err := c.do(ctx, http.MethodPost, "v0/rewards/"+url.PathEscape(id)+"/paid", map[string]any{}, &resp)
	return resp, err
}

// CreateApplication applies to or submits work for a reward.
func (c *Client) CreateApplication(ctx context.Context, rewardID string, body map[string]any) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, "v0/rewards/"+url.PathEscape(rewardID)+"/applications", body, &resp)
	return resp, err
}

// ReviewApplication approves or rejects an application.
func (c *Client) ReviewApplication(ctx context.Context, id, decision string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, "v0/applications/"+url.PathEscape(id)+"/review",
		map[string]any{"decision": decision}, &resp)
	return resp, err
}

// Applications lists applications for a reward.
func (c *Client) Applications(ctx context.Context, rewardID string) ([]Application, error) {
	var resp PaginatedApplications
	err := c.do(ctx, http.MethodGet, "v0/rewards/"+url.PathEscape(rewardID)+"/applications", nil, &resp)
	return resp.Items, err
}

// RewardWorkflow returns the inferred workflow for a reward.
func (c *Client) RewardWorkflow(ctx context.Context, rewardID string) (Workflow, error) {
	var resp Workflow
	err := c.do(ctx, http.MethodGet, "v0/rewards/"+url.PathEscape(rewardID)+"/workflow", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := withQuery(c.spacePath("events"), limit, cursor)
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func withQuery(endpoint string, limit int, cursor string) string {
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	return endpoint
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) spacePath(p string) string {
	space := url.PathEscape(c.SpaceID)
	return fmt.Sprintf("v0/spaces/%s/%s", space, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
