package lattice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// The command line itself is opaque text, like a search term.
var commandHeaders = http.Header{
	"Content-Type": []string{"text/plain"},
}

func cliQuery(graph string, env map[string]string) url.Values {
	query := url.Values{
		"graph":   []string{graph},
		"section": []string{"reported"},
	}
	for k, v := range env {
		query.Set(k, v)
	}
	return query
}

// CLIEvaluate parses command against graph and returns, per parsed command
// line, the rows its evaluation would produce, without executing side
// effects.
func (c *Client) CLIEvaluate(ctx context.Context, graph, command string, env map[string]string) ([]EvaluateResult, error) {
	var wire []struct {
		Parsed  []ParsedCommand `json:"parsed"`
		Env     JSONObject      `json:"env"`
		Execute []JSONObject    `json:"execute"`
	}
	if err := c.invoke(ctx, http.MethodPost, "/cli/evaluate", cliQuery(graph, env), command, commandHeaders, &wire); err != nil {
		return nil, err
	}

	results := make([]EvaluateResult, 0, len(wire))
	for _, entry := range wire {
		results = append(results, EvaluateResult{
			Parsed: ParsedCommands{
				Commands: entry.Parsed,
				Env:      entry.Env,
			},
			Execute: entry.Execute,
		})
	}
	return results, nil
}

// CLIExecute executes command against graph and returns the produced rows.
// The command travels as plain text; the caller-supplied content type
// overrides the default JSON headers.
func (c *Client) CLIExecute(ctx context.Context, graph, command string, env map[string]string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := c.invoke(ctx, http.MethodPost, "/cli/execute", cliQuery(graph, env), command, commandHeaders, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CLIInfo returns the core's CLI metadata: known commands and aliases.
func (c *Client) CLIInfo(ctx context.Context) (JSONObject, error) {
	var info JSONObject
	if err := c.invoke(ctx, http.MethodGet, "/cli/info", nil, nil, nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}
