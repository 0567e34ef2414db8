package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"submithub/broker/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZenodoWireEnvelope(t *testing.T) {
	metadata := Record{"title": "Deposition", "creators": []interface{}{"A"}}

	wire := zenodoToWire(metadata)
	assert.Equal(t, Record{"metadata": metadata}, wire)

	assert.Equal(t, metadata, zenodoFromWire(wire))

	// Responses without the envelope are passed through.
	assert.Equal(t, metadata, zenodoFromWire(metadata))
}

func TestZenodoQueryParamAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zenodo takes the token as a query parameter, not a header.
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		assert.Empty(t, r.Header.Get("Authorization"))

		_, err := w.Write([]byte(`{"id": 998877}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	adapter := NewZenodoAdapter(server.URL, "https://zenodo.org/record/%v")

	identifier, err := adapter.CreateRecord(context.Background(), "test-token", Record{"title": "Deposition"})
	require.NoError(t, err)
	assert.Equal(t, "998877", identifier)
}

func TestZenodoUpdateUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "PUT", r.Method)

		var body Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "metadata")

		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer server.Close()

	adapter := NewZenodoAdapter(server.URL, "https://zenodo.org/record/%v")

	record, err := adapter.UpdateRecord(context.Background(), "test-token", "998877", Record{"title": "Deposition"})
	require.NoError(t, err)
	assert.Equal(t, "Deposition", record["title"])
	assert.NotContains(t, record, "metadata")
}

func TestZenodoToSubmission(t *testing.T) {
	adapter := NewZenodoAdapter("http://unused", "https://zenodo.org/record/%v")

	submission, err := adapter.ToSubmission(Record{
		"title":    "Deposition",
		"creators": []interface{}{map[string]interface{}{"name": "Ada Lovelace"}},
	}, "998877")
	require.NoError(t, err)

	assert.Equal(t, schema.RepoZenodo, submission.RepositoryType)
	assert.Equal(t, "998877", submission.Identifier)
	assert.Equal(t, "https://zenodo.org/record/998877", submission.Url)
	assert.Equal(t, []string{"Ada Lovelace"}, submission.AuthorNames())
}
