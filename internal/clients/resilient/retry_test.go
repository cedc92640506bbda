package resilient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weni-ai/catalog-sync/internal/testutil"
)

func newTestRetrier() *Retrier {
	return NewRetrier(8, time.Millisecond, testutil.NewNopLogger())
}

func TestRetrierSucceedsAfterRateLimits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, 0, testutil.NewNopLogger())
	retrier := newTestRetrier()

	err := retrier.Do(context.Background(), "test", func(ctx context.Context) error {
		_, err := client.Request(ctx, http.MethodGet, srv.URL, nil, nil, nil)
		return err
	})

	require.NoError(t, err)
	// 429, 429, 200 - ровно три вызова
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrierDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, 0, testutil.NewNopLogger())
	retrier := newTestRetrier()

	err := retrier.Do(context.Background(), "test", func(ctx context.Context) error {
		_, err := client.Request(ctx, http.MethodGet, srv.URL, nil, nil, nil)
		return err
	})

	require.Error(t, err)
	var clientErr *ClientError
	assert.True(t, errors.As(err, &clientErr))
	assert.Equal(t, http.StatusNotFound, clientErr.StatusCode)
	assert.False(t, errors.Is(err, ErrRetryExhausted))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrierExhaustsOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, 0, testutil.NewNopLogger())
	retrier := NewRetrier(3, time.Millisecond, testutil.NewNopLogger())

	err := retrier.Do(context.Background(), "test", func(ctx context.Context) error {
		_, err := client.Request(ctx, http.MethodGet, srv.URL, nil, nil, nil)
		return err
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetryExhausted))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"client error", http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(5*time.Second, 0, testutil.NewNopLogger())
			_, err := client.Request(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestClientReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, 0, testutil.NewNopLogger())
	resp, err := client.Request(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestScrubHeaders(t *testing.T) {
	scrubbed := scrubHeaders(map[string]string{
		"Authorization":       "Bearer secret-token",
		"X-VTEX-API-AppToken": "secret",
		"Accept":              "application/json",
	})

	assert.Equal(t, "***", scrubbed["Authorization"])
	assert.Equal(t, "***", scrubbed["X-VTEX-API-AppToken"])
	assert.Equal(t, "application/json", scrubbed["Accept"])
}
