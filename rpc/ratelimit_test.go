package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.limiter("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.limiter("10.0.0.2")
	require.Equal(t, 2, rl.Len())

	now = now.Add(DefaultLimiterIdle - time.Minute)
	assert.Equal(t, 1, rl.Cleanup(), "only the first client is idle")
	assert.Equal(t, 1, rl.Len())

	// A returning client gets a fresh bucket.
	rl.limiter("10.0.0.1")
	now = now.Add(DefaultLimiterIdle + time.Second)
	assert.Equal(t, 2, rl.Cleanup())
	assert.Zero(t, rl.Len())
}

func TestRateLimiterKeysByHost(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:4000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:4001"), "same host, new port")
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:4000"))
	assert.Equal(t, 2, rl.Len())
}

func TestServerStopEndsCleanup(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil, Options{RateLimit: 5, Burst: 5})
	require.NotNil(t, s.limiter)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	select {
	case <-s.limiter.stop:
	default:
		t.Fatal("cleanup loop still running")
	}
	s.limiter.Stop()
}
