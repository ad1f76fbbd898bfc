// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	// Total attempts per request, including the first one.
	maxRetries = 3

	defaultRequestTimeout   = 30 * time.Second
	defaultPageDelay        = 100 * time.Millisecond
	defaultBackoffInitial   = 200 * time.Millisecond
	defaultMaxRateLimitWait = 15 * time.Minute
	defaultAbuseRetryAfter  = time.Minute
)

// ErrStopPagination is returned when the upstream answers 404 or 409 for a listing. The
// resource is empty, renamed or no longer accessible; callers stop paginating it.
var ErrStopPagination = errors.New("github: stop paginating resource")

// Client is a wrapper around the go-github client that adds per-request timeouts, retries
// and rate-limit waits. It is shared by all integrations; Session binds it to a token.
type Client struct {
	httpClient       *http.Client
	baseURL          *url.URL
	logger           *slog.Logger
	requestTimeout   time.Duration
	maxRetries       int
	backoffInitial   time.Duration
	maxRateLimitWait time.Duration
	pageDelay        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if raw == "" {
			return
		}
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			c.logger.Warn("Ignoring invalid GitHub API URL", "url", raw, "error", err)
			return
		}
		c.baseURL = u
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithMaxRetries sets the total number of attempts per request.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func WithBackoff(initial time.Duration) Option {
	return func(c *Client) { c.backoffInitial = initial }
}

func WithMaxRateLimitWait(d time.Duration) Option {
	return func(c *Client) { c.maxRateLimitWait = d }
}

// WithPageDelay sets the pause between consecutive page fetches of one resource.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// NewClient creates and configures a new Client instance.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{},
		logger:           logger,
		requestTimeout:   defaultRequestTimeout,
		maxRetries:       maxRetries,
		backoffInitial:   defaultBackoffInitial,
		maxRateLimitWait: defaultMaxRateLimitWait,
		pageDelay:        defaultPageDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the client bound to one integration's access token.
type Session struct {
	client *Client
	gh     *github.Client
}

// Session returns a view of the API authenticated with token. An empty token yields an
// unauthenticated session.
func (c *Client) Session(token string) *Session {
	hc := c.httpClient
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	gh := github.NewClient(hc)
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}
	return &Session{client: c, gh: gh}
}

// do runs call with a per-attempt timeout, retrying transient failures with exponential
// backoff and waiting out rate limits. 404 and 409 surface as ErrStopPagination.
func (s *Session) do(ctx context.Context, resource string, call func(ctx context.Context) error) error {
	c := s.client
	attempt := 0
	op := func() error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		err := call(reqCtx)
		if err == nil {
			return nil
		}
		return s.classify(ctx, resource, attempt, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffInitial
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries-1)), ctx)

	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.logger.Warn("Retrying GitHub request", "resource", resource, "attempt", attempt, "wait", wait, "error", err)
	})
}

// classify decides whether a failed attempt is retried. Returning a backoff.Permanent error
// ends the retry loop.
func (s *Session) classify(ctx context.Context, resource string, attempt int, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		s.client.logger.Warn("GitHub rate limit exceeded", "resource", resource, "reset", rateErr.Rate.Reset.Time, "wait", wait)
		if waitErr := s.waitRateLimit(ctx, wait); waitErr != nil {
			return backoff.Permanent(waitErr)
		}
		return err
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		wait := defaultAbuseRetryAfter
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		s.client.logger.Warn("GitHub secondary rate limit hit", "resource", resource, "wait", wait)
		if waitErr := s.waitRateLimit(ctx, wait); waitErr != nil {
			return backoff.Permanent(waitErr)
		}
		return err
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		switch {
		case code == http.StatusNotFound || code == http.StatusConflict:
			return backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrStopPagination, resource, code))
		case code >= http.StatusInternalServerError:
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	// Transport errors and per-attempt timeouts are transient.
	s.client.logger.Debug("GitHub request failed", "resource", resource, "attempt", attempt, "error", err)
	return err
}

func (s *Session) waitRateLimit(ctx context.Context, wait time.Duration) error {
	if wait < 0 {
		wait = 0
	}
	if s.client.maxRateLimitWait > 0 && wait > s.client.maxRateLimitWait {
		wait = s.client.maxRateLimitWait
	}
	// Reset timestamps have second granularity.
	return sleepCtx(ctx, wait+250*time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AuthenticatedUser fetches the profile of the token's owner.
func (s *Session) AuthenticatedUser(ctx context.Context) (*github.User, error) {
	var user *github.User
	err := s.do(ctx, "user", func(ctx context.Context) error {
		u, _, err := s.gh.Users.Get(ctx, "")
		user = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
