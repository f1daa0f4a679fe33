package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListGraphs returns the names of all graphs known to the core.
func (c *Client) ListGraphs(ctx context.Context) ([]string, error) {
	var graphs []string
	if err := c.invoke(ctx, http.MethodGet, "/graph", nil, nil, nil, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

// GetGraph returns the root node of a graph. An unknown graph fails with a
// *RemoteError satisfying IsNotFound.
func (c *Client) GetGraph(ctx context.Context, name string) (JSONObject, error) {
	var root JSONObject
	path := fmt.Sprintf("/graph/%s", url.PathEscape(name))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &root); err != nil {
		return nil, err
	}
	return root, nil
}

// CreateGraph creates a graph and returns its root node.
func (c *Client) CreateGraph(ctx context.Context, name string) (JSONObject, error) {
	var root JSONObject
	path := fmt.Sprintf("/graph/%s", url.PathEscape(name))
	if err := c.invoke(ctx, http.MethodPost, path, nil, nil, nil, &root); err != nil {
		return nil, err
	}
	return root, nil
}

// DeleteGraph removes a graph. With truncate set the graph's nodes are
// removed but the graph itself is kept. Returns the core's status message.
func (c *Client) DeleteGraph(ctx context.Context, name string, truncate bool) (string, error) {
	var query url.Values
	if truncate {
		query = url.Values{"truncate": []string{"true"}}
	}
	path := fmt.Sprintf("/graph/%s", url.PathEscape(name))

	resp, err := c.do(ctx, http.MethodDelete, path, query, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newRemoteError(http.MethodDelete, path, resp)
	}
	return readText(resp)
}

// MergeGraph applies update to graph directly, without staging, and returns
// the resulting counts.
func (c *Client) MergeGraph(ctx context.Context, graph string, update []JSONObject) (GraphUpdate, error) {
	var result GraphUpdate
	path := fmt.Sprintf("/graph/%s/merge", url.PathEscape(graph))
	if err := c.invoke(ctx, http.MethodPost, path, nil, update, nil, &result); err != nil {
		return GraphUpdate{}, err
	}
	return result, nil
}
