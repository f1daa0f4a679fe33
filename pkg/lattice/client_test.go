package lattice_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticegraph/lattice-go/pkg/lattice"
	"github.com/latticegraph/lattice-go/pkg/latticetest"
	"github.com/latticegraph/lattice-go/pkg/trust"
)

func newClient(t *testing.T, cfg lattice.Config) *lattice.Client {
	t.Helper()
	if cfg.TrustFs == nil {
		cfg.TrustFs = afero.NewMemMapFs()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "/cache"
	}
	client, err := lattice.New(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNew(t *testing.T) {
	t.Run("rejects an invalid configuration", func(t *testing.T) {
		_, err := lattice.New(lattice.Config{BaseURL: "ftp://core.example"})
		assert.Error(t, err)
	})

	t.Run("plain http needs no trust anchor", func(t *testing.T) {
		core := latticetest.NewServer()
		defer core.Close()

		client := newClient(t, lattice.Config{BaseURL: core.URL})
		assert.Nil(t, client.TrustAnchor())

		pong, err := client.Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "pong", pong)
	})

	t.Run("https pins the core CA and talks over it", func(t *testing.T) {
		core := latticetest.NewTLSServer(latticetest.WithPSK("hunter2"))
		defer core.Close()

		client := newClient(t, lattice.Config{BaseURL: core.URL, PSK: "hunter2"})

		anchor := client.TrustAnchor()
		require.NotNil(t, anchor)
		assert.Equal(t, core.CAFingerprint(), anchor.Fingerprint())

		// The round trip only succeeds if the pinned CA verifies the
		// core's leaf certificate.
		pong, err := client.Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "pong", pong)
	})

	t.Run("https with unreachable bootstrap fails construction", func(t *testing.T) {
		_, err := lattice.New(lattice.Config{
			BaseURL: "https://127.0.0.1:1",
			PSK:     "hunter2",
			Timeout: 2 * time.Second,
			TrustFs: afero.NewMemMapFs(),
		})

		var unavailable *trust.UnavailableError
		assert.ErrorAs(t, err, &unavailable)
	})
}

func TestAuthentication(t *testing.T) {
	core := latticetest.NewServer(latticetest.WithPSK("hunter2"))
	defer core.Close()

	t.Run("signed requests are accepted", func(t *testing.T) {
		client := newClient(t, lattice.Config{BaseURL: core.URL, PSK: "hunter2"})

		_, err := client.Ping(context.Background())
		assert.NoError(t, err)
	})

	t.Run("unsigned requests are rejected", func(t *testing.T) {
		client := newClient(t, lattice.Config{BaseURL: core.URL})

		_, err := client.Ping(context.Background())
		var remote *lattice.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	})

	t.Run("wrongly signed requests are rejected", func(t *testing.T) {
		client := newClient(t, lattice.Config{BaseURL: core.URL, PSK: "wrong"})

		_, err := client.Ping(context.Background())
		var remote *lattice.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	})
}

func TestTransportErrors(t *testing.T) {
	t.Run("connection failure surfaces as transport error", func(t *testing.T) {
		client := newClient(t, lattice.Config{
			BaseURL: "http://127.0.0.1:1",
			Timeout: 2 * time.Second,
		})

		_, err := client.Ping(context.Background())
		var transportErr *lattice.TransportError
		assert.ErrorAs(t, err, &transportErr)
		assert.False(t, lattice.IsRemoteRejection(err))
	})

	t.Run("caller context cancellation surfaces as transport error", func(t *testing.T) {
		blocked := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-blocked
		}))
		defer server.Close()
		defer close(blocked)

		client := newClient(t, lattice.Config{BaseURL: server.URL})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := client.Ping(ctx)
		var transportErr *lattice.TransportError
		assert.ErrorAs(t, err, &transportErr)
	})
}

func TestRetry(t *testing.T) {
	t.Run("retries idempotent reads on 5xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "warming up", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("pong"))
		}))
		defer server.Close()

		client := newClient(t, lattice.Config{
			BaseURL: server.URL,
			Retry:   &lattice.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		})

		pong, err := client.Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "pong", pong)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("exhausted retries surface the rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newClient(t, lattice.Config{
			BaseURL: server.URL,
			Retry:   &lattice.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
		})

		_, err := client.Ping(context.Background())
		var remote *lattice.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusServiceUnavailable, remote.StatusCode)
	})

	t.Run("mutations are never retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newClient(t, lattice.Config{
			BaseURL: server.URL,
			Retry:   &lattice.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond},
		})

		_, err := client.MergeGraph(context.Background(), "g1", nil)
		assert.True(t, lattice.IsRemoteRejection(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("without retry config a 5xx read fails immediately", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newClient(t, lattice.Config{BaseURL: server.URL})

		_, err := client.Ping(context.Background())
		assert.True(t, lattice.IsRemoteRejection(err))
		assert.Equal(t, int32(1), calls.Load())
	})
}
