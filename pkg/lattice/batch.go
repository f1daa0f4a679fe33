package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// BatchIDHeader is the response header carrying the server-assigned batch
// identifier on a staging call.
const BatchIDHeader = "BatchId"

// BatchState is the client-visible lifecycle state of a staged batch.
type BatchState string

const (
	BatchStaged    BatchState = "staged"
	BatchCommitted BatchState = "committed"
	BatchAborted   BatchState = "aborted"
)

// BatchStateError is returned when an operation is attempted on a Batch
// handle that is no longer staged. It is a client-side check: the core would
// reject the call anyway, but an illegal transition on a handle is a caller
// bug worth catching before the round trip.
type BatchStateError struct {
	ID    string
	State BatchState
	Op    string
}

func (e *BatchStateError) Error() string {
	return fmt.Sprintf("batch %s is %s, cannot %s", e.ID, e.State, e.Op)
}

// AddToBatch stages update into a server-side batch on graph. With batchID
// empty the core allocates a new batch and returns its identifier; with a
// batchID from a prior call the existing staged batch is extended. The
// returned GraphUpdate reports the cumulative counts staged so far, which
// never regress across extensions of the same batch.
//
// Staging an unknown, committed, or aborted identifier fails with
// *RemoteError; the identifier returned here is the only valid handle for
// commit and abort.
func (c *Client) AddToBatch(ctx context.Context, graph string, update []JSONObject, batchID string) (string, GraphUpdate, error) {
	var query url.Values
	if batchID != "" {
		query = url.Values{"batch_id": []string{batchID}}
	}

	path := fmt.Sprintf("/graph/%s/batch/merge", url.PathEscape(graph))
	resp, err := c.do(ctx, http.MethodPost, path, query, update, nil)
	if err != nil {
		return "", GraphUpdate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", GraphUpdate{}, newRemoteError(http.MethodPost, path, resp)
	}

	id := resp.Header.Get(BatchIDHeader)
	if id == "" {
		return "", GraphUpdate{}, &TransportError{
			Method: http.MethodPost,
			URL:    path,
			Err:    fmt.Errorf("staging response carries no %s header", BatchIDHeader),
		}
	}

	var staged GraphUpdate
	if err := decodeBody(resp, &staged); err != nil {
		return "", GraphUpdate{}, err
	}

	c.logger.Debug("staged batch update",
		"graph", graph,
		"batch_id", id,
		"nodes_created", staged.NodesCreated,
		"edges_created", staged.EdgesCreated,
	)
	return id, staged, nil
}

// ListBatches returns the batches currently staged on graph. Read-only.
func (c *Client) ListBatches(ctx context.Context, graph string) ([]BatchDescriptor, error) {
	var batches []BatchDescriptor
	path := fmt.Sprintf("/graph/%s/batch", url.PathEscape(graph))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// CommitBatch makes the staged changes of batchID durable on graph and
// returns the applied counts. The identifier is invalid afterwards: a second
// commit, an abort, or further staging all fail with *RemoteError.
func (c *Client) CommitBatch(ctx context.Context, graph, batchID string) (GraphUpdate, error) {
	var applied GraphUpdate
	path := fmt.Sprintf("/graph/%s/batch/%s", url.PathEscape(graph), url.PathEscape(batchID))
	if err := c.invoke(ctx, http.MethodPost, path, nil, nil, nil, &applied); err != nil {
		return GraphUpdate{}, err
	}
	c.logger.Info("committed batch", "graph", graph, "batch_id", batchID)
	return applied, nil
}

// AbortBatch discards the staged changes of batchID on graph. The identifier
// is invalid afterwards; aborting an unknown or closed identifier fails with
// *RemoteError.
func (c *Client) AbortBatch(ctx context.Context, graph, batchID string) error {
	path := fmt.Sprintf("/graph/%s/batch/%s", url.PathEscape(graph), url.PathEscape(batchID))
	if err := c.invoke(ctx, http.MethodDelete, path, nil, nil, nil, nil); err != nil {
		return err
	}
	c.logger.Info("aborted batch", "graph", graph, "batch_id", batchID)
	return nil
}

// Batch is a stateful handle over one staged batch. It tracks the
// staged/committed/aborted lifecycle explicitly so illegal transitions
// (commit after abort, staging into a closed batch) fail client-side with
// *BatchStateError before any round trip.
//
// The handle guards its own state with a mutex, so a single handle may be
// shared across goroutines. What it cannot provide is isolation between
// separate handles or processes staging into the same identifier; whether
// that is safe is defined by the core, and coordination belongs above this
// layer (one logical owner per batch identifier).
//
// A batch left neither committed nor aborted is eventually expired by the
// core on its own schedule; the client neither relies on nor controls that.
type Batch struct {
	client *Client
	graph  string

	mu     sync.Mutex
	id     string
	state  BatchState
	staged GraphUpdate
}

// StageBatch opens a new batch on graph by staging the first update into it.
func (c *Client) StageBatch(ctx context.Context, graph string, update []JSONObject) (*Batch, error) {
	id, staged, err := c.AddToBatch(ctx, graph, update, "")
	if err != nil {
		return nil, err
	}
	return &Batch{
		client: c,
		graph:  graph,
		id:     id,
		state:  BatchStaged,
		staged: staged,
	}, nil
}

// ID returns the server-assigned batch identifier.
func (b *Batch) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

// State returns the current lifecycle state as seen by this handle. After an
// interrupted call the server-side state may differ; re-query with
// Client.ListBatches rather than assuming either outcome.
func (b *Batch) State() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Staged returns the cumulative counts staged so far.
func (b *Batch) Staged() GraphUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.staged
}

// Stage extends the batch with a further update and returns the cumulative
// counts staged so far. A failed call leaves the handle staged: the server
// may or may not have applied the attempt, and the caller decides whether to
// retry, commit, or abort.
func (b *Batch) Stage(ctx context.Context, update []JSONObject) (GraphUpdate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BatchStaged {
		return GraphUpdate{}, &BatchStateError{ID: b.id, State: b.state, Op: "stage"}
	}
	_, staged, err := b.client.AddToBatch(ctx, b.graph, update, b.id)
	if err != nil {
		return GraphUpdate{}, err
	}
	b.staged = staged
	return staged, nil
}

// Commit makes the staged changes durable and closes the handle.
func (b *Batch) Commit(ctx context.Context) (GraphUpdate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BatchStaged {
		return GraphUpdate{}, &BatchStateError{ID: b.id, State: b.state, Op: "commit"}
	}
	applied, err := b.client.CommitBatch(ctx, b.graph, b.id)
	if err != nil {
		return GraphUpdate{}, err
	}
	b.state = BatchCommitted
	return applied, nil
}

// Abort discards the staged changes and closes the handle.
func (b *Batch) Abort(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BatchStaged {
		return &BatchStateError{ID: b.id, State: b.state, Op: "abort"}
	}
	if err := b.client.AbortBatch(ctx, b.graph, b.id); err != nil {
		return err
	}
	b.state = BatchAborted
	return nil
}
