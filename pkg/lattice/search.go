package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// The search term itself is opaque to the client: it travels as plain text
// and only the core interprets it.
var searchHeaders = http.Header{
	"Content-Type": []string{"text/plain"},
}

func searchPath(graph, mode string) string {
	return fmt.Sprintf("/graph/%s/search/%s", url.PathEscape(graph), mode)
}

// SearchGraphRaw returns the core's translated query for search, without
// executing it.
func (c *Client) SearchGraphRaw(ctx context.Context, graph, search string) (JSONObject, error) {
	var raw JSONObject
	if err := c.invoke(ctx, http.MethodPost, searchPath(graph, "raw"), nil, search, searchHeaders, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SearchGraphExplain estimates the cost of executing search against graph.
func (c *Client) SearchGraphExplain(ctx context.Context, graph, search string) (EstimatedSearchCost, error) {
	var cost EstimatedSearchCost
	if err := c.invoke(ctx, http.MethodPost, searchPath(graph, "explain"), nil, search, searchHeaders, &cost); err != nil {
		return EstimatedSearchCost{}, err
	}
	return cost, nil
}

// SearchList executes search and returns the matching nodes.
func (c *Client) SearchList(ctx context.Context, graph, search string) ([]JSONObject, error) {
	return c.searchRows(ctx, graph, "list", search)
}

// SearchGraph executes search and returns matching nodes together with the
// edges connecting them.
func (c *Client) SearchGraph(ctx context.Context, graph, search string) ([]JSONObject, error) {
	return c.searchRows(ctx, graph, "graph", search)
}

// SearchAggregate executes an aggregation search and returns the aggregated
// rows.
func (c *Client) SearchAggregate(ctx context.Context, graph, search string) ([]JSONObject, error) {
	return c.searchRows(ctx, graph, "aggregate", search)
}

func (c *Client) searchRows(ctx context.Context, graph, mode, search string) ([]JSONObject, error) {
	var rows []JSONObject
	if err := c.invoke(ctx, http.MethodPost, searchPath(graph, mode), nil, search, searchHeaders, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
