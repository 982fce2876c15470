package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// HTTPError is a non-2xx response from the spreadsheet host.
type HTTPError struct {
	StatusCode int
	Status     string
	Snippet    string
}

func (e *HTTPError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("fetch failed: %s: %s", e.Status, e.Snippet)
	}
	return fmt.Sprintf("fetch failed: %s", e.Status)
}

// Client downloads the remote spreadsheet with a bounded retry strategy:
// exponential backoff with jitter on 429/5xx and transient network errors,
// honoring Retry-After when the host sends one.
type Client struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// NewClient builds a fetch client. Non-positive arguments fall back to
// defaults (60s timeout, 3 attempts, 500ms base, 4s cap).
func NewClient(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// Fetch downloads url and returns the raw body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("source url is empty")
	}
	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				lastErr = err
				time.Sleep(c.capDelay(withJitter(backoff)))
				backoff *= 2
				continue
			}
			return nil, fmt.Errorf("http request: %w", err)
		}
		body, herr := readResponse(resp)
		if herr == nil {
			return body, nil
		}
		lastErr = herr
		retryable := herr.StatusCode == http.StatusTooManyRequests ||
			(herr.StatusCode >= 500 && herr.StatusCode <= 599)
		if !retryable || attempt == c.retryMaxAttempts {
			return nil, herr
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				time.Sleep(time.Duration(secs) * time.Second)
				continue
			}
		}
		time.Sleep(c.capDelay(withJitter(backoff)))
		backoff *= 2
	}
	return nil, lastErr
}

// FetchTable downloads and decodes url into a Table. The format is picked
// from the URL path (xlsx vs csv).
func (c *Client) FetchTable(ctx context.Context, url string, opt ReadOptions) (*Table, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ReadBytes(url, body, opt)
}

func readResponse(resp *http.Response) ([]byte, *HTTPError) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Snippet: string(snippet)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: "read body: " + err.Error()}
	}
	return body, nil
}

func (c *Client) capDelay(d time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && d > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return d
}

// withJitter spreads retries by up to half the base delay.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func isRetryableNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	var op *net.OpError
	return errors.As(err, &op)
}
