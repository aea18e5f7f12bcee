package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketscout/internal/api"
)

// ErrAPIUnavailable reports that no daemon API is configured or reachable.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon api returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewClient returns a client for the daemon bound at bind. An empty bind
// returns nil, which every method treats as unavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 10 * time.Second},
		token: strings.TrimSpace(token),
	}, nil
}

// Status fetches daemon runtime state.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// TriggerRun asks the daemon to start a daily run. A run that already
// completed is returned as reused; otherwise accepted carries the date to poll.
func (c *Client) TriggerRun(ctx context.Context, req api.TriggerRequest) (accepted *api.TriggerAccepted, reused *api.DailyRun, err error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/runs/trigger", req, &raw); err != nil {
		return nil, nil, err
	}
	var probe struct {
		Reused bool `json:"reused"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, nil, err
	}
	if probe.Reused {
		var run api.DailyRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, nil, err
		}
		return nil, &run, nil
	}
	var ack api.TriggerAccepted
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, nil, err
	}
	return &ack, nil, nil
}

// RunStatus fetches the run for date; an empty date means today.
func (c *Client) RunStatus(ctx context.Context, date string) (api.DailyRun, error) {
	if strings.TrimSpace(date) == "" {
		date = "today"
	}
	var out api.DailyRun
	err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(date), nil, &out)
	return out, err
}

// WaitForRun polls RunStatus until the run leaves the running state.
func (c *Client) WaitForRun(ctx context.Context, date string, interval time.Duration) (api.DailyRun, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := c.RunStatus(ctx, date)
		var apiErr *APIError
		switch {
		case err == nil && run.Status != "running":
			return run, nil
		case err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound):
			return run, err
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, target any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
