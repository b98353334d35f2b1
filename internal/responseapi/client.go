package responseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"landform/internal/form"
	"landform/internal/logging"
)

var ErrMissingResponseID = errors.New("response id is required")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to %s: %d %s", e.Op, e.StatusCode, e.Body)
}

type Event string

const (
	EventView  Event = "view"
	EventStart Event = "start"
)

type Metadata struct {
	UserAgent   string `json:"userAgent,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
	DeviceType  string `json:"deviceType,omitempty"`
	Browser     string `json:"browser,omitempty"`
	OS          string `json:"os,omitempty"`
}

type Outcome struct {
	ScreenRef string         `json:"screenRef"`
	Label     string         `json:"label,omitempty"`
	Score     *float64       `json:"score,omitempty"`
	Variables map[string]any `json:"variables"`
}

type StartParams struct {
	SessionID    string
	Metadata     *Metadata
	HiddenFields map[string]string
}

type StartResult struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
}

type UpdateParams struct {
	ResponseID       string
	SessionID        string
	Answers          form.Answers
	LastFieldRef     string
	CalculatedValues map[string]float64
}

type CompleteParams struct {
	ResponseID       string
	SessionID        string
	Answers          form.Answers
	Outcome          *Outcome
	CalculatedValues map[string]float64
	CaptchaToken     string
}

type TrackParams struct {
	Event     Event
	SessionID string
}

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

type Options struct {
	BaseURL    string
	ProjectID  string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	// OnError sees every start/update/complete failure before it is returned.
	OnError func(error)
}

// Client talks to the responses API. It keeps no state between calls.
type Client struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
	logger     *slog.Logger
	onError    func(error)
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		projectID:  strings.TrimSpace(opts.ProjectID),
		httpClient: httpClient,
		logger:     logger,
		onError:    opts.OnError,
	}
}

func (c *Client) ProjectID() string { return c.projectID }

func (c *Client) StartResponse(ctx context.Context, params StartParams) (StartResult, error) {
	body := map[string]any{"projectId": c.projectID}
	if params.SessionID != "" {
		body["sessionId"] = params.SessionID
	}
	if params.Metadata != nil {
		body["metadata"] = params.Metadata
	}
	if len(params.HiddenFields) > 0 {
		body["hiddenFields"] = params.HiddenFields
	}
	var out StartResult
	if err := c.do(ctx, "start response", http.MethodPost, "/api/responses", "", body, &out); err != nil {
		return StartResult{}, c.fail(err)
	}
	return out, nil
}

func (c *Client) UpdateAnswers(ctx context.Context, params UpdateParams) error {
	if strings.TrimSpace(params.ResponseID) == "" {
		return c.fail(ErrMissingResponseID)
	}
	body := map[string]any{"answers": answersOrEmpty(params.Answers)}
	if params.LastFieldRef != "" {
		body["lastFieldRef"] = params.LastFieldRef
	}
	if len(params.CalculatedValues) > 0 {
		body["calculatedValues"] = params.CalculatedValues
	}
	path := "/api/responses/" + url.PathEscape(params.ResponseID)
	return c.fail(c.do(ctx, "update answers", http.MethodPatch, path, params.SessionID, body, nil))
}

func (c *Client) CompleteResponse(ctx context.Context, params CompleteParams) error {
	if strings.TrimSpace(params.ResponseID) == "" {
		return c.fail(ErrMissingResponseID)
	}
	body := map[string]any{}
	if params.Answers != nil {
		body["answers"] = params.Answers
	}
	if params.Outcome != nil {
		body["outcome"] = params.Outcome
	}
	if len(params.CalculatedValues) > 0 {
		body["calculatedValues"] = params.CalculatedValues
	}
	if params.CaptchaToken != "" {
		body["captchaToken"] = params.CaptchaToken
	}
	path := "/api/responses/" + url.PathEscape(params.ResponseID) + "/complete"
	return c.fail(c.do(ctx, "complete response", http.MethodPost, path, params.SessionID, body, nil))
}

// TrackEvent is best effort: failures are logged and never returned.
func (c *Client) TrackEvent(ctx context.Context, params TrackParams) {
	body := map[string]any{"projectId": c.projectID, "event": params.Event}
	if params.SessionID != "" {
		body["sessionId"] = params.SessionID
	}
	if err := c.do(ctx, "track event", http.MethodPost, "/api/analytics/track", "", body, nil); err != nil {
		c.logger.Warn("analytics tracking failed", "event", string(params.Event), "err", err)
	}
}

func (c *Client) fail(err error) error {
	if err != nil && c.onError != nil {
		c.onError(err)
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path, sessionID string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("x-session-id", sessionID)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		return &StatusError{Op: op, StatusCode: res.StatusCode, Body: string(text)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func answersOrEmpty(a form.Answers) form.Answers {
	if a == nil {
		return form.Answers{}
	}
	return a
}
