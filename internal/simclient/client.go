// Package simclient talks to a simulation endpoint over its JSON HTTP API
// and implements core.Endpoint.
package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/sentinel"
	"github.com/giantswarm/simguard/internal/simapi"
	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrConnect is returned by Dial when the endpoint never answered.
const ErrConnect = sentinel.Error("connect to simulation endpoint")

// DefaultTimeout bounds every request when New is given zero.
const DefaultTimeout = 2 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is returned for an unexpected HTTP status.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// Client is a core.Endpoint over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ core.Endpoint = (*Client)(nil)

// New returns a client for host:port. The request timeout is fixed for the
// client's lifetime; zero uses DefaultTimeout.
func New(host string, port int, timeout time.Duration) *Client {
	return NewWithURL("http://"+net.JoinHostPort(host, strconv.Itoa(port)), timeout)
}

// NewWithURL returns a client for a base URL such as an httptest server.
func NewWithURL(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the endpoint base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// DefaultDialBackoff retries for roughly six seconds before giving up.
func DefaultDialBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: 200 * time.Millisecond,
		Factor:   2,
		Jitter:   0.1,
		Steps:    5,
		Cap:      5 * time.Second,
	}
}

// Dial waits until the endpoint answers a liveness query, retrying with
// backoff. It wraps ErrConnect when every attempt failed.
func (c *Client) Dial(ctx context.Context, backoff wait.Backoff) error {
	log := core.Logger().With("endpoint", c.baseURL)
	var last error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		if last = c.Ping(ctx); last != nil {
			log.Debug("endpoint not ready", "error", last)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if last != nil {
			err = last
		}
		return fmt.Errorf("%w at %s: %w", ErrConnect, c.baseURL, err)
	}
	log.Info("connected to simulation endpoint")
	return nil
}

// Ping fetches the world settings. Any failure means the endpoint is gone.
func (c *Client) Ping(ctx context.Context) error {
	var s simapi.Settings
	return c.do(ctx, http.MethodGet, simapi.PathSettings, nil, &s)
}

// SpawnPoints implements core.Endpoint.
func (c *Client) SpawnPoints(ctx context.Context) (int, error) {
	var sp simapi.SpawnPoints
	if err := c.do(ctx, http.MethodGet, simapi.PathSpawnPoints, nil, &sp); err != nil {
		return 0, err
	}
	return sp.Count, nil
}

// Spawn implements core.Endpoint. A 409 wraps core.ErrSpawnCollision.
func (c *Client) Spawn(ctx context.Context, req core.SpawnRequest) (core.ActorID, error) {
	body := simapi.SpawnRequest{Blueprint: req.Blueprint, SpawnPoint: req.SpawnPoint}
	var a simapi.Actor
	err := c.do(ctx, http.MethodPost, simapi.PathActors, body, &a)
	if hasStatus(err, http.StatusConflict) {
		return 0, fmt.Errorf("%w: %w", core.ErrSpawnCollision, err)
	}
	if err != nil {
		return 0, err
	}
	return core.ActorID(a.ID), nil
}

// IsAlive implements core.Endpoint. A 404 means the actor is gone.
func (c *Client) IsAlive(ctx context.Context, id core.ActorID) (bool, error) {
	var a simapi.Actor
	err := c.do(ctx, http.MethodGet, actorPath(id), nil, &a)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Destroy implements core.Endpoint. Destroying an unknown actor succeeds.
func (c *Client) Destroy(ctx context.Context, id core.ActorID) error {
	err := c.do(ctx, http.MethodDelete, actorPath(id), nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func actorPath(id core.ActorID) string {
	return strings.Replace(simapi.PathActor, "{id}", id.String(), 1)
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// do sends a JSON request and decodes a 2xx response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var apiErr simapi.Error
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: msg}
}
