package pfr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// UserAgent for requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval keeps us under the site's rate limit
	MinRequestInterval = 3 * time.Second

	DefaultMaxRetries = 4
	DefaultTimeout    = 30 * time.Second
	initialBackoff    = 500 * time.Millisecond
)

var (
	ErrNotFound    = errors.New("pfr: page not found")
	ErrConnRefused = errors.New("pfr: connection refused")
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages over plain HTTP. Requests are spaced by a
// minimum interval, guarded by a circuit breaker, and retried with
// exponential backoff when the connection is refused.
type HTTPFetcher struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Entry
	maxRetries int
	backoff    time.Duration
	throttle   *throttle
}

// HTTPOptions configures an HTTPFetcher. Zero values take defaults.
type HTTPOptions struct {
	Timeout     time.Duration
	MinInterval time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

func NewHTTPFetcher(opts HTTPOptions, logger *logrus.Logger) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = MinRequestInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = initialBackoff
	}

	log := logger.WithField("component", "pfr-fetcher")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pfr-http",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &HTTPFetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		breaker:    breaker,
		log:        log,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		throttle:   &throttle{interval: opts.MinInterval},
	}
}

type response struct {
	status int
	body   string
}

// Fetch GETs url. A 404 returns ErrNotFound and does not count against the
// breaker.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := f.throttle.wait(ctx); err != nil {
			return "", err
		}

		res, err := f.breaker.Execute(func() (interface{}, error) {
			return f.get(ctx, url)
		})
		if err == nil {
			r := res.(*response)
			if r.status == http.StatusNotFound {
				return "", fmt.Errorf("%s: %w", url, ErrNotFound)
			}
			return r.body, nil
		}

		if !errors.Is(err, ErrConnRefused) || attempt >= f.maxRetries {
			return "", err
		}

		delay := f.backoff << attempt
		f.log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Warn("connection refused, backing off")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%s: %w", url, ErrConnRefused)
		}
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &response{status: resp.StatusCode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	return &response{status: resp.StatusCode, body: string(body)}, nil
}

// throttle spaces out requests to the same site.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// wait blocks until the minimum interval since the previous request has passed.
func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if remaining := t.interval - time.Since(t.last); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
	t.last = time.Now()
	return nil
}
