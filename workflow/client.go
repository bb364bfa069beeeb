package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/syssam/curator"
)

// Client is a REST Engine implementation against a Camunda-style
// engine API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger engine failures are detailed to.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client for the engine REST API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartProcess implements Engine.
func (c *Client) StartProcess(ctx context.Context, req StartProcessRequest) (*ProcessInstance, error) {
	body := map[string]any{
		"businessKey": req.BusinessKey,
	}
	if len(req.Variables) > 0 {
		body["variables"] = req.Variables
	}
	if len(req.StartInstructions) > 0 {
		body["startInstructions"] = req.StartInstructions
	}
	var instance ProcessInstance
	path := "/process-definition/key/" + url.PathEscape(req.Key) + "/start"
	if err := c.do(ctx, http.MethodPost, path, body, &instance); err != nil {
		return nil, c.fail(ctx, "start-process", err)
	}
	return &instance, nil
}

// ListTasks implements Engine.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]Task, error) {
	path := "/task"
	if q.ProcessInstanceBusinessKey != "" {
		path += "?processInstanceBusinessKey=" + url.QueryEscape(q.ProcessInstanceBusinessKey)
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, c.fail(ctx, "list-tasks", err)
	}
	return tasks, nil
}

// ListProcessInstances implements Engine.
func (c *Client) ListProcessInstances(ctx context.Context, q InstanceQuery) ([]ProcessInstance, error) {
	path := "/process-instance"
	if q.BusinessKey != "" {
		path += "?businessKey=" + url.QueryEscape(q.BusinessKey)
	}
	var instances []ProcessInstance
	if err := c.do(ctx, http.MethodGet, path, nil, &instances); err != nil {
		return nil, c.fail(ctx, "list-process-instances", err)
	}
	return instances, nil
}

// DeleteProcessInstance implements Engine. A 404 from the engine means
// the instance is already gone and is treated as success.
func (c *Client) DeleteProcessInstance(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/process-instance/"+url.PathEscape(id), nil, nil)
	if err != nil {
		var se *statusError
		if asStatusError(err, &se) && se.code == http.StatusNotFound {
			return nil
		}
		return c.fail(ctx, "delete-process-instance", err)
	}
	return nil
}

// CompleteTask implements Engine.
func (c *Client) CompleteTask(ctx context.Context, taskID string, vars Variables) error {
	body := map[string]any{"variables": vars}
	if err := c.do(ctx, http.MethodPost, "/task/"+url.PathEscape(taskID)+"/complete", body, nil); err != nil {
		return c.fail(ctx, "complete-task", err)
	}
	return nil
}

// fail logs the detailed cause and returns the opaque engine error.
func (c *Client) fail(ctx context.Context, op string, err error) error {
	c.logger.LogAttrs(ctx, slog.LevelError, "engine call failed",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	return curator.NewEngineError(op, err)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.code, e.body)
}

func asStatusError(err error, target **statusError) bool {
	se, ok := err.(*statusError)
	if ok {
		*target = se
	}
	return ok
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &statusError{code: res.StatusCode, body: string(detail)}
	}
	if out == nil {
		return nil
	}
	if res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Engine = (*Client)(nil)
