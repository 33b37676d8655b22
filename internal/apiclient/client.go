// Package apiclient is the device-side transport for the set-log API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/convert"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Appender is what the sync engine needs from the server.
type Appender interface {
	Append(ctx context.Context, req convert.AppendRequest) (uuid.UUID, error)
	AppendBatch(ctx context.Context, items []convert.BatchItem) ([]convert.BatchResult, error)
}

var _ Appender = (*Client)(nil)

// Client talks to the set-log HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     string
}

const (
	defaultBaseURL   = "http://127.0.0.1:8080"
	defaultUserAgent = "setlog/0.1"
	requestTimeout   = 10 * time.Second
)

// Options configure a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// New builds a Client. A blank base URL means the local default.
func New(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		token:     strings.TrimSpace(opts.Token),
	}, nil
}

// RemoteError is a well-formed refusal from the server.
type RemoteError struct {
	Status    int
	Message   string
	Permanent bool // retrying the same request can never succeed
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsPermanent reports whether err is a permanent refusal. Network errors, timeouts,
// 5xx, contention and auth failures are transient.
func IsPermanent(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Permanent
}

// Append sends exactly one set and returns the server set id.
func (c *Client) Append(ctx context.Context, req convert.AppendRequest) (uuid.UUID, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/set-logs", req)
	if err != nil {
		return uuid.Nil, err
	}
	var data convert.AppendData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return uuid.Nil, fmt.Errorf("decode append data: %w", err)
	}
	id, err := uuid.FromString(data.SetID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("malformed response: missing setId")
	}
	return id, nil
}

// AppendBatch sends items in one request. The returned results line up with items.
func (c *Client) AppendBatch(ctx context.Context, items []convert.BatchItem) ([]convert.BatchResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/set-logs/batch", convert.BatchRequest{Items: items})
	if err != nil {
		return nil, err
	}
	if len(env.Results) != len(items) {
		return nil, fmt.Errorf("malformed response: %d results for %d items", len(env.Results), len(items))
	}
	for i, r := range env.Results {
		if r.QueueItemID != items[i].QueueItemID {
			return nil, fmt.Errorf("malformed response: result %d answers %q, want %q", i, r.QueueItemID, items[i].QueueItemID)
		}
	}
	return env.Results, nil
}

// SessionExerciseSets fetches the persisted sets of one exercise.
func (c *Client) SessionExerciseSets(ctx context.Context, sessionExerciseID uuid.UUID) ([]model.SetLog, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/session-exercises/"+sessionExerciseID.String()+"/sets", nil)
	if err != nil {
		return nil, err
	}
	var data convert.SetsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode sets: %w", err)
	}
	return data.Sets, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	return err
}

// do sends body as JSON and validates the response envelope once: a non-2xx status
// or ok=false becomes a *RemoteError.
func (c *Client) do(ctx context.Context, method, path string, body any) (convert.Envelope, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return convert.Envelope{}, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), rd)
	if err != nil {
		return convert.Envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return convert.Envelope{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env convert.Envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 || (decodeErr == nil && !env.OK) {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return convert.Envelope{}, &RemoteError{
			Status:    resp.StatusCode,
			Message:   msg,
			Permanent: resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity,
		}
	}
	if decodeErr != nil {
		return convert.Envelope{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return env, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
