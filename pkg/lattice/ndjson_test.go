package lattice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNDJSON(t *testing.T) {
	t.Run("one document per line, blank lines skipped", func(t *testing.T) {
		input := "{\"id\":\"a\"}\n\n{\"id\":\"b\"}\n"

		var docs []JSONObject
		require.NoError(t, decodeNDJSON(strings.NewReader(input), &docs))

		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0]["id"])
		assert.Equal(t, "b", docs[1]["id"])
	})

	t.Run("empty input decodes to an empty slice", func(t *testing.T) {
		var docs []JSONObject
		require.NoError(t, decodeNDJSON(strings.NewReader(""), &docs))
		assert.Empty(t, docs)
	})

	t.Run("typed elements", func(t *testing.T) {
		input := "{\"id\":\"b1\"}\n{\"id\":\"b2\",\"affected_nodes\":[\"n1\"]}\n"

		var batches []BatchDescriptor
		require.NoError(t, decodeNDJSON(strings.NewReader(input), &batches))

		require.Len(t, batches, 2)
		assert.Equal(t, "b1", batches[0].ID)
		assert.Equal(t, []string{"n1"}, batches[1].AffectedNodes)
	})

	t.Run("invalid line fails", func(t *testing.T) {
		var docs []JSONObject
		assert.Error(t, decodeNDJSON(strings.NewReader("{\"id\":\"a\"}\nnot json\n"), &docs))
	})
}

func TestDecodeBody(t *testing.T) {
	respond := func(contentType, body string) *http.Response {
		rec := httptest.NewRecorder()
		rec.Header().Set("Content-Type", contentType)
		_, _ = rec.WriteString(body)
		return rec.Result()
	}

	t.Run("ndjson by content type", func(t *testing.T) {
		resp := respond("application/x-ndjson", "{\"id\":\"a\"}\n{\"id\":\"b\"}\n")

		var docs []JSONObject
		require.NoError(t, decodeBody(resp, &docs))
		assert.Len(t, docs, 2)
	})

	t.Run("plain json otherwise", func(t *testing.T) {
		resp := respond("application/json", "{\"nodes_created\":2}")

		var update GraphUpdate
		require.NoError(t, decodeBody(resp, &update))
		assert.Equal(t, 2, update.NodesCreated)
	})
}
