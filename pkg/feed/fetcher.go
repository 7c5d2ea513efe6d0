package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// ErrBadStatus is returned when the feed server responds with a non-success status
var ErrBadStatus = errors.New("unexpected status code")

// statusError reports a non-success response, matches ErrBadStatus
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("%s: %d", ErrBadStatus, e.code) }

func (e *statusError) Unwrap() error { return ErrBadStatus }

// maxFeedSize limits the size of a feed document read into memory
const maxFeedSize = 32 << 20

// HTTPFetcher downloads raw feed documents via HTTP
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	attempts   int
	retryDelay time.Duration
}

// FetcherParams defines parameters for HTTPFetcher
type FetcherParams struct {
	Timeout    time.Duration // per-request timeout
	UserAgent  string
	Attempts   int           // total attempts, 1 means no retry
	RetryDelay time.Duration // initial backoff delay between attempts
}

// NewHTTPFetcher creates a new feed fetcher
func NewHTTPFetcher(params FetcherParams) *HTTPFetcher {
	if params.Attempts < 1 {
		params.Attempts = 1
	}
	if params.RetryDelay == 0 {
		params.RetryDelay = time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: params.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		userAgent:  params.UserAgent,
		attempts:   params.Attempts,
		retryDelay: params.RetryDelay,
	}
}

// Fetch retrieves the raw feed body from the given URL
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte
	var clientErr error // 4xx responses are not retried
	retrier := repeater.NewBackoff(f.attempts, f.retryDelay, repeater.WithMaxDelay(10*time.Second))
	err := retrier.Do(ctx, func() error {
		b, err := f.fetch(ctx, feedURL)
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			clientErr = err
			return nil
		}
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if clientErr != nil {
		err = clientErr
	}
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	return body, nil
}

// fetch makes a single GET request and reads the whole response body
func (f *HTTPFetcher) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
