// Package lattice is a client for the Lattice graph-data core.
//
// A Client is constructed once per endpoint and is immutable afterwards:
// the endpoint, the request signer, and (for https endpoints) the pinned
// trust anchor are all fixed at construction, so one client may be shared
// freely across goroutines. Every operation is a single synchronous
// request/response round trip bounded by the configured timeout and the
// caller's context; nothing retries automatically unless Config.Retry opts
// idempotent reads in.
//
// Graph updates can be applied directly (MergeGraph) or staged into a
// server-side batch that becomes durable only on commit; see Batch.
package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/latticegraph/lattice-go/pkg/trust"
)

// Client talks to one Lattice core.
type Client struct {
	baseURL    *url.URL
	psk        string
	httpClient *http.Client
	anchor     *trust.Anchor
	retry      *RetryConfig
	logger     hclog.Logger
}

// New constructs a client for cfg.BaseURL. For https endpoints the core's CA
// certificate is resolved (or loaded from the local cache) and pinned before
// the client is returned; if that fails, construction fails with
// *trust.UnavailableError rather than degrading to unverified transport.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	var anchor *trust.Anchor
	if baseURL.Scheme == "https" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		anchor, err = cfg.newResolver().Resolve(ctx, baseURL.String(), cfg.PSK)
		if err != nil {
			return nil, err
		}
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if anchor != nil {
		transport.TLSClientConfig = anchor.TLSConfig()
	}

	return &Client{
		baseURL: baseURL,
		psk:     cfg.PSK,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		anchor: anchor,
		retry:  cfg.Retry,
		logger: cfg.Logger.Named("lattice"),
	}, nil
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// TrustAnchor returns the pinned CA certificate, or nil for unencrypted
// endpoints.
func (c *Client) TrustAnchor() *trust.Anchor {
	return c.anchor
}

// Close releases pooled idle connections. The client remains usable; the
// pool exists purely as a performance optimization.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
