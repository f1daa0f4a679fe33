package lattice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/latticegraph/lattice-go/pkg/auth"
)

// Header precedence, lowest to highest: defaults, signed auth headers,
// caller-supplied headers. A caller override of Content-Type (e.g.
// text/plain for raw CLI execution) always wins.
func (c *Client) headers(extra http.Header) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/x-ndjson")

	if c.psk != "" {
		signed, err := auth.Sign(c.psk, nil)
		if err != nil {
			return nil, err
		}
		for name, values := range signed {
			h[http.CanonicalHeaderKey(name)] = values
		}
	}

	for name, values := range extra {
		h[http.CanonicalHeaderKey(name)] = values
	}
	return h, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do issues one request. The body may be nil, a string or []byte sent as-is,
// or any other value marshalled as JSON. The response is returned without
// status interpretation; callers own closing its body. Each request is signed
// fresh, so retried attempts never reuse a signature.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, extra http.Header) (*http.Response, error) {
	endpoint := c.buildURL(path, query)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	attempt := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		headers, err := c.headers(extra)
		if err != nil {
			return nil, err
		}
		req.Header = headers

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{Method: method, URL: endpoint, Err: err}
		}
		return resp, nil
	}

	if c.retry == nil || method != http.MethodGet {
		resp, err := attempt()
		c.logCall(method, path, resp, err)
		return resp, err
	}

	resp, err := c.retryGet(ctx, method, path, attempt)
	c.logCall(method, path, resp, err)
	return resp, err
}

// retryGet retries an idempotent read on transport failures and 5xx
// responses, with capped exponential backoff. If attempts are exhausted on a
// 5xx, the rejection is returned as *RemoteError.
func (c *Client) retryGet(ctx context.Context, method, path string, attempt func() (*http.Response, error)) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialBackoff
	bo.MaxInterval = c.retry.MaxBackoff
	bo.MaxElapsedTime = 0

	var resp *http.Response
	op := func() error {
		r, err := attempt()
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				return err
			}
			// Signing and request-building failures never heal on retry.
			return backoff.Permanent(err)
		}
		if r.StatusCode >= 500 {
			remoteErr := newRemoteError(method, path, r)
			r.Body.Close()
			return remoteErr
		}
		resp = r
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.retry.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) logCall(method, path string, resp *http.Response, err error) {
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return
	}
	c.logger.Debug("request completed", "method", method, "path", path, "status", resp.StatusCode)
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return payload, nil
	}
}

// invoke runs one round trip expecting a successful status, decoding the body
// into out when out is non-nil. List-shaped ndjson responses and plain JSON
// both decode through decodeBody.
func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body any, extra http.Header, out any) error {
	resp, err := c.do(ctx, method, path, query, body, extra)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRemoteError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp, out)
}

// invokeText runs one round trip expecting a plain-text response.
func (c *Client) invokeText(ctx context.Context, method, path string, query url.Values) (string, error) {
	resp, err := c.do(ctx, method, path, query, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newRemoteError(method, path, resp)
	}
	return readText(resp)
}

func readText(resp *http.Response) (string, error) {
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{
			Method: resp.Request.Method,
			URL:    resp.Request.URL.String(),
			Err:    err,
		}
	}
	return string(text), nil
}
