package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrSessionEnded signals that the stored session could not be renewed
	// and the caller must authenticate again.
	ErrSessionEnded = errors.New("session ended, sign in again")
	// ErrNoSession signals that no tokens are stored.
	ErrNoSession = errors.New("no active session")
)

const refreshPath = "/v1/auth/refresh"

// Credentials is the token pair a session client holds between requests.
type Credentials struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// CredentialStore abstracts where the token pair lives, so callers can back
// it with a keychain or a file without touching the client.
type CredentialStore interface {
	Load() (Credentials, bool)
	Save(Credentials)
	Clear()
}

// MemoryStore is a mutex-guarded in-process CredentialStore.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, m.set
}

func (m *MemoryStore) Save(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.set = true
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	m.set = false
}

// SessionClient wraps an http.Client with bearer-token attachment and
// transparent single-flight refresh. Concurrent requests that all fail with
// an expired access token share one refresh exchange; each request is
// replayed at most once.
type SessionClient struct {
	baseURL        string
	httpClient     *http.Client
	store          CredentialStore
	refreshGroup   singleflight.Group
	refreshTimeout time.Duration
}

// Option configures a SessionClient.
type Option func(*SessionClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SessionClient) { c.httpClient = hc }
}

// WithRefreshTimeout bounds how long a refresh exchange may take.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *SessionClient) { c.refreshTimeout = d }
}

// NewSessionClient creates a SessionClient against baseURL. store may be nil,
// in which case an in-memory store is used.
func NewSessionClient(baseURL string, store CredentialStore, opts ...Option) *SessionClient {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &SessionClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		store:          store,
		refreshTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSession stores a token pair, e.g. after login.
func (c *SessionClient) SetSession(creds Credentials) {
	c.store.Save(creds)
}

// ClearSession drops the stored token pair.
func (c *SessionClient) ClearSession() {
	c.store.Clear()
}

// Do executes an authenticated request against the API. path is relative to
// the base URL. The request body, if any, must be replayable, so it is
// buffered up front.
func (c *SessionClient) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if _, ok := c.store.Load(); !ok {
		return nil, ErrNoSession
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	if !c.shouldRefresh(resp, path) {
		return resp, nil
	}
	resp.Body.Close()

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	// One replay with the renewed access token. A second 401 is returned
	// as-is rather than looping.
	return c.send(ctx, method, path, payload)
}

func (c *SessionClient) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds, ok := c.store.Load(); ok && creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	return c.httpClient.Do(req)
}

// shouldRefresh reports whether a response is a renewable 401. Only the
// token_expired machine code triggers a refresh; any other 401 means the
// token is bad, not stale. The refresh endpoint itself never triggers one.
// The response body is restored so the caller can still read it.
func (c *SessionClient) shouldRefresh(resp *http.Response, path string) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	if path == refreshPath {
		return false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return false
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return body.Code == "token_expired"
}

// refresh exchanges the stored refresh token for a new pair. Concurrent
// callers coalesce onto a single exchange; every waiter observes the same
// outcome. Any failure ends the session.
func (c *SessionClient) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		creds, ok := c.store.Load()
		if !ok || creds.RefreshToken == "" {
			return nil, ErrNoSession
		}

		refreshCtx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		renewed, err := c.exchange(refreshCtx, creds.RefreshToken)
		if err != nil {
			c.store.Clear()
			return nil, fmt.Errorf("%w: %v", ErrSessionEnded, err)
		}

		c.store.Save(renewed)
		return nil, nil
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (c *SessionClient) exchange(ctx context.Context, refreshToken string) (Credentials, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return Credentials{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, refreshPath, payload)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var body struct {
		Tokens struct {
			AccessToken        string `json:"access_token"`
			AccessTokenExpiry  int64  `json:"access_token_expires_at"`
			RefreshToken       string `json:"refresh_token"`
			RefreshTokenExpiry int64  `json:"refresh_token_expires_at"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credentials{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if body.Tokens.AccessToken == "" || body.Tokens.RefreshToken == "" {
		return Credentials{}, errors.New("refresh response missing tokens")
	}

	return Credentials{
		AccessToken:        body.Tokens.AccessToken,
		AccessTokenExpiry:  time.Unix(body.Tokens.AccessTokenExpiry, 0),
		RefreshToken:       body.Tokens.RefreshToken,
		RefreshTokenExpiry: time.Unix(body.Tokens.RefreshTokenExpiry, 0),
	}, nil
}
