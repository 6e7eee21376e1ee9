// Package workflow talks to the external classification workflow that
// decides whether an email is junk, incomplete or a valid service request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
	"fsm-intake/internal/model"
	"fsm-intake/internal/service"
)

var ErrWorkflowDisabled = errors.New("classification workflow is not configured")

// StatusError is a non-2xx answer from the workflow.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow responded %d: %s", e.Code, e.Body)
}

type Settings struct {
	URL     string
	Timeout time.Duration
	// Breaker opens after this many consecutive failures.
	MaxFailures uint32
	OpenTimeout time.Duration
}

type workflowClient struct {
	client  *resty.Client
	url     string
	breaker *gobreaker.CircuitBreaker[*model.ProcessingResponse]
	logger  *logger.Logger
}

// NewWorkflowClient returns a client for the workflow webhook at
// settings.URL. With no URL every call fails with ErrWorkflowDisabled.
func NewWorkflowClient(settings Settings, logger *logger.Logger) service.WorkflowClient {
	if strings.TrimSpace(settings.URL) == "" {
		return disabledClient{}
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(settings.Timeout)

	breaker := gobreaker.NewCircuitBreaker[*model.ProcessingResponse](gobreaker.Settings{
		Name:    "workflow",
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			// The workflow rejecting a request is not an outage
			if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	})

	return &workflowClient{
		client:  c,
		url:     settings.URL,
		breaker: breaker,
		logger:  logger,
	}
}

func (w *workflowClient) ProcessEmail(ctx context.Context, req *model.ProcessingRequest) (*model.ProcessingResponse, error) {
	start := time.Now()
	out, err := w.breaker.Execute(func() (*model.ProcessingResponse, error) {
		return w.call(ctx, req)
	})
	metrics.RecordWorkflowCallLatency(err, time.Since(start))
	if err != nil {
		w.logger.Errorf("Workflow call for email %s failed: %v", req.EmailID, err)
		return nil, err
	}
	return out, nil
}

func (w *workflowClient) call(ctx context.Context, req *model.ProcessingRequest) (*model.ProcessingResponse, error) {
	var out model.ProcessingResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(w.url)
	if err != nil {
		return nil, fmt.Errorf("workflow request: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	if !out.Classification.Known() {
		return nil, fmt.Errorf("workflow returned unknown classification %q", out.Classification)
	}
	return &out, nil
}

// IsCircuitOpen reports whether err came from a tripped breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type disabledClient struct{}

func (disabledClient) ProcessEmail(context.Context, *model.ProcessingRequest) (*model.ProcessingResponse, error) {
	return nil, ErrWorkflowDisabled
}
