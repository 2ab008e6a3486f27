package client

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

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// Client talks to a running tracker API server. Refusals from the server are
// returned as *tracker.Rejection errors.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. http://localhost:3000).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) issuesURL(project string) string {
	return c.baseURL + "/api/issues/" + url.PathEscape(project)
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	// Refusals arrive as 200 with an error body.
	var reply tracker.Reply
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &reply); err == nil && reply.Error != "" {
			return &tracker.Rejection{Reason: reply.Error, ID: reply.ID}
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// List returns the project's issues matching filter.
func (c *Client) List(ctx context.Context, project string, filter models.Filter) ([]models.Issue, error) {
	target := c.issuesURL(project)
	if len(filter) > 0 {
		target += "?" + url.Values(filter).Encode()
	}
	var issues []models.Issue
	if err := c.do(ctx, http.MethodGet, target, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Create files a new issue.
func (c *Client) Create(ctx context.Context, project string, fields tracker.Fields) (*models.Issue, error) {
	var issue models.Issue
	if err := c.do(ctx, http.MethodPost, c.issuesURL(project), fields, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Update changes the fields of the issue named by fields["_id"].
func (c *Client) Update(ctx context.Context, project string, fields tracker.Fields) (tracker.Reply, error) {
	var reply tracker.Reply
	err := c.do(ctx, http.MethodPut, c.issuesURL(project), fields, &reply)
	return reply, err
}

// Delete removes the issue with the given id.
func (c *Client) Delete(ctx context.Context, project, id string) (tracker.Reply, error) {
	var reply tracker.Reply
	err := c.do(ctx, http.MethodDelete, c.issuesURL(project), tracker.Fields{models.FieldID: id}, &reply)
	return reply, err
}

// Projects lists projects holding issues.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/projects", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}
