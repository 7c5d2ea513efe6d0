package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		rssContent := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title></channel></rss>`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
			assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
			assert.NotEmpty(t, r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(rssContent))
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second, UserAgent: "test-agent/1.0"})
		body, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, rssContent, string(body))
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second})
		body, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code: 404")
		assert.ErrorIs(t, err, ErrBadStatus)
		assert.Nil(t, body)
	})

	t.Run("client error not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second, Attempts: 3, RetryDelay: time.Millisecond})
		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.ErrorIs(t, err, ErrBadStatus)
		assert.Contains(t, err.Error(), "403")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 20 * time.Millisecond})
		body, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Nil(t, body)
	})

	t.Run("invalid url", func(t *testing.T) {
		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second})
		body, err := fetcher.Fetch(context.Background(), "not-a-valid-url")
		require.Error(t, err)
		assert.Nil(t, body)
	})

	t.Run("single attempt by default", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second})
		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries until success", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("<rss/>"))
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(FetcherParams{Timeout: 5 * time.Second, Attempts: 3, RetryDelay: time.Millisecond})
		body, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<rss/>", string(body))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}
