// Package client is the Go client for the intake query API. Inbox layers
// the ordering rules an operator view needs on top of it.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/middleware"
	"fsm-intake/internal/model"
	"fsm-intake/internal/service"
)

const DefaultBaseURL = "http://localhost:3000"

// TransportError wraps a failure to reach the API or an unexpected status.
// Callers may retry; it is never fatal.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *TransportError) Retryable() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// ErrNotFound is returned by Get and Review for unknown ids.
var ErrNotFound = errors.New("email not found")

// DeleteResult reports the outcome of a delete. An unknown id is not an error.
type DeleteResult struct {
	ID       string
	Deleted  bool
	NotFound bool
}

type Client struct {
	http *resty.Client
}

// New creates a client for baseURL; an empty baseURL uses DefaultBaseURL.
// sessionID, when set, keeps interpreter state stable across calls.
func New(baseURL, sessionID string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)
	if sessionID != "" {
		c.SetHeader(middleware.SessionHeader, sessionID)
	}
	return &Client{http: c}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.IsError() {
		msg := resp.Status()
		if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
			msg = body.Error
		}
		return &TransportError{Op: op, Status: resp.StatusCode(), Err: errors.New(msg)}
	}
	return nil
}

// List fetches every retained record, newest first.
func (c *Client) List(ctx context.Context) ([]*model.Email, error) {
	var out struct {
		Emails []*model.Email `json:"emails"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/get-emails")
	if err := c.check("list emails", resp, err); err != nil {
		return nil, err
	}
	if out.Emails == nil {
		out.Emails = []*model.Email{}
	}
	return out.Emails, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Email, error) {
	var out model.Email
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/get-emails/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := c.check("get email", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes one record. A 404 is reported as NotFound, not an error.
func (c *Client) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		SetError(&errorBody{}).
		Delete("/api/delete-email")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return &DeleteResult{ID: id, NotFound: true}, nil
	}
	if err := c.check("delete email", resp, err); err != nil {
		return nil, err
	}
	return &DeleteResult{ID: id, Deleted: true}, nil
}

// Clear empties the store and returns how many records were removed.
func (c *Client) Clear(ctx context.Context) (int, error) {
	var out struct {
		Cleared int `json:"cleared"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Delete("/api/emails/clear")
	if err := c.check("clear emails", resp, err); err != nil {
		return 0, err
	}
	return out.Cleared, nil
}

// Review fetches the server-side interpretation for this client's session.
func (c *Client) Review(ctx context.Context, id string) (*interpreter.Result, error) {
	var out interpreter.Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/emails/{id}/review")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := c.check("review email", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context) (*service.Dashboard, error) {
	var out service.Dashboard
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/dashboard")
	if err := c.check("dashboard", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
