package lattice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticegraph/lattice-go/pkg/lattice"
	"github.com/latticegraph/lattice-go/pkg/latticetest"
)

func TestGraphOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	t.Run("create, get, list, delete", func(t *testing.T) {
		root, err := client.CreateGraph(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "root", root["id"])

		got, err := client.GetGraph(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, root, got)

		graphs, err := client.ListGraphs(ctx)
		require.NoError(t, err)
		assert.Contains(t, graphs, "g1")

		message, err := client.DeleteGraph(ctx, "g1", false)
		require.NoError(t, err)
		assert.NotEmpty(t, message)

		_, err = client.GetGraph(ctx, "g1")
		assert.True(t, lattice.IsNotFound(err))
	})

	t.Run("merge applies directly and counts", func(t *testing.T) {
		update := []lattice.JSONObject{
			node("a"),
			node("b"),
			{"from": "a", "to": "b", "edge_type": "default"},
		}
		result, err := client.MergeGraph(ctx, "g2", update)
		require.NoError(t, err)
		assert.Equal(t, 2, result.NodesCreated)
		assert.Equal(t, 1, result.EdgesCreated)

		// Merging the same nodes again updates rather than creates.
		result, err = client.MergeGraph(ctx, "g2", []lattice.JSONObject{node("a")})
		require.NoError(t, err)
		assert.Equal(t, 0, result.NodesCreated)
		assert.Equal(t, 1, result.NodesUpdated)
	})
}

func TestNodeOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	_, err := client.CreateGraph(ctx, "g1")
	require.NoError(t, err)

	t.Run("create under parent and read back", func(t *testing.T) {
		created, err := client.CreateNode(ctx, "g1", "root", "child1", lattice.JSONObject{
			"reported": map[string]any{"kind": "test_node"},
		})
		require.NoError(t, err)
		assert.Equal(t, "child1", created["id"])

		got, err := client.GetNode(ctx, "g1", "child1")
		require.NoError(t, err)
		assert.Equal(t, "child1", got["id"])
	})

	t.Run("patch whole node and section", func(t *testing.T) {
		patched, err := client.PatchNode(ctx, "g1", "child1", lattice.JSONObject{"tag": "blue"}, "")
		require.NoError(t, err)
		assert.Equal(t, "blue", patched["tag"])

		patched, err = client.PatchNode(ctx, "g1", "child1", lattice.JSONObject{"owner": "team-a"}, "desired")
		require.NoError(t, err)
		desired, ok := patched["desired"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "team-a", desired["owner"])
	})

	t.Run("bulk patch", func(t *testing.T) {
		updated, err := client.PatchNodes(ctx, "g1", []lattice.JSONObject{
			{"id": "child1", "tag": "green"},
			{"id": "child2", "tag": "red"},
		})
		require.NoError(t, err)
		require.Len(t, updated, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, client.DeleteNode(ctx, "g1", "child1"))

		_, err := client.GetNode(ctx, "g1", "child1")
		assert.True(t, lattice.IsNotFound(err))

		err = client.DeleteNode(ctx, "g1", "child1")
		assert.True(t, lattice.IsNotFound(err))
	})
}

func TestSearchOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	_, err := client.MergeGraph(ctx, "g1", []lattice.JSONObject{node("a"), node("b")})
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		rows, err := client.SearchList(ctx, "g1", "is(test_node)")
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("graph", func(t *testing.T) {
		rows, err := client.SearchGraph(ctx, "g1", "is(test_node) <-[0:]->")
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("aggregate", func(t *testing.T) {
		rows, err := client.SearchAggregate(ctx, "g1", "aggregate(kind: sum(1))")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("raw", func(t *testing.T) {
		raw, err := client.SearchGraphRaw(ctx, "g1", "is(test_node)")
		require.NoError(t, err)
		assert.Equal(t, "is(test_node)", raw["query"])
	})

	t.Run("explain", func(t *testing.T) {
		cost, err := client.SearchGraphExplain(ctx, "g1", "is(test_node)")
		require.NoError(t, err)
		assert.Equal(t, lattice.CostSimple, cost.Rating)
		assert.Equal(t, 2, cost.AvailableNrItems)
	})

	t.Run("empty search is rejected remotely", func(t *testing.T) {
		_, err := client.SearchList(ctx, "g1", "")
		assert.True(t, lattice.IsRemoteRejection(err))
	})
}

func TestSubscriberOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	t.Run("update and read back", func(t *testing.T) {
		sub, err := client.UpdateSubscriber(ctx, "worker-1", []lattice.Subscription{
			{MessageType: "collect_done", WaitForCompletion: true, TimeoutSeconds: 60},
		})
		require.NoError(t, err)
		assert.Equal(t, "worker-1", sub.ID)
		assert.Contains(t, sub.Subscriptions, "collect_done")

		got, err := client.Subscriber(ctx, "worker-1")
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("add and remove a subscription", func(t *testing.T) {
		sub, err := client.AddSubscription(ctx, "worker-1", lattice.Subscription{
			MessageType:       "cleanup_plan",
			WaitForCompletion: true,
			TimeoutSeconds:    30,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(30), sub.Subscriptions["cleanup_plan"].TimeoutSeconds)

		byEvent, err := client.SubscribersForEvent(ctx, "cleanup_plan")
		require.NoError(t, err)
		require.Len(t, byEvent, 1)

		sub, err = client.DeleteSubscription(ctx, "worker-1", lattice.Subscription{MessageType: "cleanup_plan"})
		require.NoError(t, err)
		assert.NotContains(t, sub.Subscriptions, "cleanup_plan")
	})

	t.Run("list and delete subscriber", func(t *testing.T) {
		subs, err := client.Subscribers(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 1)

		require.NoError(t, client.DeleteSubscriber(ctx, "worker-1"))

		_, err = client.Subscriber(ctx, "worker-1")
		assert.True(t, lattice.IsNotFound(err))
	})
}

func TestConfigOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	t.Run("put, get, patch, list, delete", func(t *testing.T) {
		stored, err := client.PutConfig(ctx, "collector", lattice.JSONObject{"interval": "1h"}, true)
		require.NoError(t, err)
		assert.Equal(t, "1h", stored["interval"])

		patched, err := client.PatchConfig(ctx, "collector", lattice.JSONObject{"regions": []any{"eu-west-1"}})
		require.NoError(t, err)
		assert.Equal(t, "1h", patched["interval"])

		ids, err := client.Configs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"collector"}, ids)

		require.NoError(t, client.DeleteConfig(ctx, "collector"))

		_, err = client.Config(ctx, "collector")
		assert.True(t, lattice.IsNotFound(err))
	})

	t.Run("validation settings", func(t *testing.T) {
		cv, err := client.PutConfigValidation(ctx, lattice.ConfigValidation{ID: "collector", ExternalValidation: true})
		require.NoError(t, err)
		assert.True(t, cv.ExternalValidation)

		got, err := client.ConfigValidation(ctx, "collector")
		require.NoError(t, err)
		assert.Equal(t, cv, got)

		ids, err := client.ListConfigsValidation(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"collector"}, ids)
	})
}

func TestModelOperations(t *testing.T) {
	core := latticetest.NewServer(latticetest.WithModel(lattice.Model{
		Kinds: []lattice.Kind{{FQN: "string", RuntimeKind: "string"}},
	}))
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	model, err := client.GetModel(ctx)
	require.NoError(t, err)
	require.Len(t, model.Kinds, 1)

	model, err = client.UpdateModel(ctx, []lattice.Kind{{FQN: "test_node"}})
	require.NoError(t, err)
	assert.Len(t, model.Kinds, 2)

	model, err = client.ConfigsModel(ctx)
	require.NoError(t, err)
	assert.Len(t, model.Kinds, 2)
}

func TestCLIOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	t.Run("evaluate", func(t *testing.T) {
		results, err := client.CLIEvaluate(ctx, "g1", "search is(test_node)", nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Parsed.Commands, 1)
		assert.Equal(t, "search is(test_node)", results[0].Parsed.Commands[0].Cmd)
	})

	t.Run("execute sends plain text", func(t *testing.T) {
		// The fake rejects anything but text/plain, so success here
		// proves the caller-supplied content type overrode the JSON
		// default.
		rows, err := client.CLIExecute(ctx, "g1", "search all | count", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("info", func(t *testing.T) {
		info, err := client.CLIInfo(ctx)
		require.NoError(t, err)
		assert.Contains(t, info, "commands")
	})
}

func TestSystemOperations(t *testing.T) {
	core := latticetest.NewServer()
	defer core.Close()
	client := newClient(t, lattice.Config{BaseURL: core.URL})
	ctx := context.Background()

	pong, err := client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)

	ready, err := client.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ready)
}
