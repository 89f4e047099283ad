// Package client is the API client for the account service. It owns the
// cookie jar, replays requests once after a token refresh, and keeps a burst
// of concurrent 401s down to a single refresh call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// ErrSessionExpired is returned by Refresh when the server no longer honors
// the refresh token.
var ErrSessionExpired = errors.New("session expired")

type User struct {
	ID              uint64 `json:"id"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// APIError is a non-2xx response decoded from the server envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Options struct {
	Timeout time.Duration
	Retry   RetryConfig

	// OnSessionExpired fires once per failed refresh, after local identity
	// state has been cleared. The UI layer redirects to login from here.
	OnSessionExpired func()
}

// Client holds all coordinator state as instance fields so separate clients
// (tests included) never share a refresh flag or waiter list.
type Client struct {
	baseURL          string
	http             *http.Client
	retry            RetryConfig
	onSessionExpired func()

	mu         sync.Mutex
	refreshing bool
	waiters    []chan error
	user       *User
}

func New(baseURL string, opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{Jar: jar, Timeout: timeout},
		retry:            retry,
		onSessionExpired: opts.OnSessionExpired,
	}, nil
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeEnvelope(resp, &user); err != nil {
		return nil, err
	}
	c.setUser(&user)
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/auth/logout", nil)
	if err != nil {
		return err
	}
	c.setUser(nil)
	return decodeEnvelope(resp, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeEnvelope(resp, &user); err != nil {
		return nil, err
	}
	c.setUser(&user)
	return &user, nil
}

// CurrentUser is the identity from the last successful Login/Me, nil after
// logout or an expired session.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Do issues a request, transparently refreshing the session on a 401 and
// replaying the request once. A request that has been replayed is never
// replayed again, bounding amplification to one extra round-trip.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if refreshErr := c.refreshSession(ctx); refreshErr != nil {
		// Dead session: the original 401 stands, callers observe their own
		// failure instead of hanging.
		return resp, nil
	}

	resp.Body.Close()
	return c.send(ctx, method, path, payload)
}

// Refresh forces a token rotation, coalescing with any in-flight refresh.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshSession(ctx)
}

// refreshSession is the single-flight guard: the first caller performs the
// refresh, later callers queue and receive the shared outcome in FIFO order.
func (c *Client) refreshSession(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	err := c.callRefresh(ctx)

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if err != nil {
		c.setUser(nil)
		if c.onSessionExpired != nil {
			c.onSessionExpired()
		}
	}

	// Flush in enqueue order so queued requests replay in the order they
	// failed.
	for _, ch := range waiters {
		ch <- err
	}

	return err
}

func (c *Client) callRefresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ErrSessionExpired
	}
	return nil
}

// send performs one request with transient-failure retries: retryable
// statuses and timeouts back off exponentially, hard network errors and
// everything else return immediately.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt >= c.retry.MaxRetries || !retryableError(err) {
				return nil, err
			}
		} else {
			if attempt >= c.retry.MaxRetries || !c.retry.RetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			resp.Body.Close()
		}

		select {
		case <-time.After(c.retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) setUser(user *User) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user"`
}

func decodeEnvelope(resp *http.Response, user *User) error {
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if user != nil && env.User != nil {
		*user = *env.User
	}
	return nil
}
