package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/logger"

	"github.com/sony/gobreaker"
)

var (
	ErrInvalidURL  = errors.New("invalid youtube url")
	ErrNoCaptions  = errors.New("no captions available")
	ErrUnavailable = errors.New("youtube unavailable")
	ErrRejected    = errors.New("youtube rejected the request")
)

var videoIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ExtractVideoID returns the 11 character video id of a YouTube url.
func ExtractVideoID(rawURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil || len(m[2]) != 11 {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return m[2], nil
}

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

// Client talks to the public YouTube endpoints. All requests share one
// circuit breaker so a YouTube outage fails jobs fast instead of stalling
// the worker on timeouts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxTries   int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = u
	}
}

func WithRetry(maxTries int, delay time.Duration) ClientOption {
	return func(cl *Client) {
		cl.maxTries = maxTries
		cl.retryDelay = delay
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		maxTries:   3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "youtube",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[YouTube] Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.url, e.status)
}

// Unwrap maps 4xx responses, e.g. private or removed videos, to ErrRejected.
func (e *statusError) Unwrap() error {
	if e.status >= 400 && e.status < 500 {
		return ErrRejected
	}
	return nil
}

// get fetches url and returns the body. 4xx responses are not retried.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.breaker.Execute(func() (any, error) {
		return util.RetryWithBackoff(ctx, c.maxTries, c.retryDelay, func(ctx context.Context) ([]byte, error) {
			return c.getOnce(ctx, url)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, util.Permanent(&statusError{url: url, status: resp.StatusCode})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, &statusError{url: url, status: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, nil
}
