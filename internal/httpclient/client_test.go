package httpclient

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

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BRAF", r.URL.Query().Get("ref"))
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	c := New(Config{Name: "synvar", Timeout: time.Second})
	body, err := c.Get(context.Background(), srv.URL+"?ref=BRAF")

	require.NoError(t, err)
	assert.Equal(t, "<ok/>", string(body))
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{Name: "ct", Retry: verrors.FixedRetryConfig(2, time.Millisecond)})
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_StatusErrorAndBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(Config{Name: "terminology", MaxFailures: 2})

	_, err := c.Get(context.Background(), srv.URL)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, se.Body, "boom")

	_, _ = c.Get(context.Background(), srv.URL)
	_, err = c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, verrors.ErrCircuitOpen)
	assert.Equal(t, verrors.StateOpen, c.Breaker().State())
}

func TestClient_BasicAuthAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "elastic", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "es", Username: "elastic", Password: "secret"})
	_, err := c.Do(context.Background(), http.MethodPost, srv.URL, []byte(`{"query":{}}`), "application/json")
	require.NoError(t, err)
}
