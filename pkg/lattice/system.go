package lattice

import (
	"context"
	"net/http"
)

// Ping checks liveness of the core. Returns the core's plain-text reply.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.invokeText(ctx, http.MethodGet, "/system/ping", nil)
}

// Ready checks whether the core is ready to serve requests.
func (c *Client) Ready(ctx context.Context) (string, error) {
	return c.invokeText(ctx, http.MethodGet, "/system/ready", nil)
}
