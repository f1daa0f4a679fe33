package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreateNode creates a node under parentID in graph and returns the created
// document.
func (c *Client) CreateNode(ctx context.Context, graph, parentID, nodeID string, node JSONObject) (JSONObject, error) {
	var created JSONObject
	path := fmt.Sprintf("/graph/%s/node/%s/under/%s",
		url.PathEscape(graph), url.PathEscape(nodeID), url.PathEscape(parentID))
	if err := c.invoke(ctx, http.MethodPost, path, nil, node, nil, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// GetNode returns a node document.
func (c *Client) GetNode(ctx context.Context, graph, nodeID string) (JSONObject, error) {
	var node JSONObject
	path := fmt.Sprintf("/graph/%s/node/%s", url.PathEscape(graph), url.PathEscape(nodeID))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &node); err != nil {
		return nil, err
	}
	return node, nil
}

// PatchNode merges node into an existing node document and returns the
// updated document. A non-empty section restricts the patch to that section
// of the document.
func (c *Client) PatchNode(ctx context.Context, graph, nodeID string, node JSONObject, section string) (JSONObject, error) {
	path := fmt.Sprintf("/graph/%s/node/%s", url.PathEscape(graph), url.PathEscape(nodeID))
	if section != "" {
		path += "/section/" + url.PathEscape(section)
	}
	var updated JSONObject
	if err := c.invoke(ctx, http.MethodPatch, path, nil, node, nil, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteNode removes a node from graph.
func (c *Client) DeleteNode(ctx context.Context, graph, nodeID string) error {
	path := fmt.Sprintf("/graph/%s/node/%s", url.PathEscape(graph), url.PathEscape(nodeID))
	return c.invoke(ctx, http.MethodDelete, path, nil, nil, nil, nil)
}

// PatchNodes applies a bulk patch to many nodes at once and returns the
// updated documents.
func (c *Client) PatchNodes(ctx context.Context, graph string, nodes []JSONObject) ([]JSONObject, error) {
	var updated []JSONObject
	path := fmt.Sprintf("/graph/%s/nodes", url.PathEscape(graph))
	if err := c.invoke(ctx, http.MethodPatch, path, nil, nodes, nil, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}
