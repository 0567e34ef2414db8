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

func TestEarthChemWireRoundTrip(t *testing.T) {
	metadata := Record{
		"title": "Geochem Samples",
		"creators": []interface{}{
			map[string]interface{}{"name": "Lead Author"},
			map[string]interface{}{"name": "Contributor One"},
			map[string]interface{}{"name": "Contributor Two"},
		},
		"extra": map[string]interface{}{"sampleCount": "42"},
	}

	wire := earthChemToWire(metadata)

	assert.Equal(t, map[string]interface{}{"name": "Lead Author"}, wire["leadAuthor"])
	assert.Len(t, wire["contributors"], 2)
	assert.NotContains(t, wire, "creators")

	// Auxiliary metadata rides along json-encoded in the notes field.
	assert.NotContains(t, wire, "extra")
	var notes map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(wire["notes"].(string)), &notes))
	assert.Equal(t, "42", notes["sampleCount"])

	restored := earthChemFromWire(wire)
	assert.Equal(t, metadata["creators"], restored["creators"])
	assert.Equal(t, metadata["extra"], restored["extra"])
	assert.Equal(t, metadata["title"], restored["title"])
}

func TestEarthChemWireSingleCreator(t *testing.T) {
	wire := earthChemToWire(Record{"creators": []interface{}{"Solo Author"}})
	assert.Equal(t, "Solo Author", wire["leadAuthor"])
	assert.Empty(t, wire["contributors"])

	restored := earthChemFromWire(wire)
	assert.Equal(t, []interface{}{"Solo Author"}, restored["creators"])
}

func TestEarthChemFromWireKeepsUnparseableNotes(t *testing.T) {
	// Free text notes that are not json are left alone.
	record := earthChemFromWire(Record{"notes": "plain text comment"})
	assert.Equal(t, "plain text comment", record["notes"])
	assert.NotContains(t, record, "extra")
}

func TestEarthChemCreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/ecl/submissions", r.URL.Path)

		var body Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "leadAuthor")

		// The ECL api returns numeric submission ids.
		_, err := w.Write([]byte(`{"id": 1047}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	adapter := NewEarthChemAdapter(server.URL, "https://ecl.earthchem.org/view.php?id=%v")

	identifier, err := adapter.CreateRecord(context.Background(), "test-token", Record{
		"title":    "Geochem Samples",
		"creators": []interface{}{"Lead Author"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1047", identifier)
}

func TestEarthChemToSubmission(t *testing.T) {
	adapter := NewEarthChemAdapter("http://unused", "https://ecl.earthchem.org/view.php?id=%v")

	submission, err := adapter.ToSubmission(Record{
		"title":    "Geochem Samples",
		"creators": []interface{}{"Lead Author", map[string]interface{}{"name": "Contributor"}},
	}, "1047")
	require.NoError(t, err)

	assert.Equal(t, schema.RepoEarthChem, submission.RepositoryType)
	assert.Equal(t, "1047", submission.Identifier)
	assert.Equal(t, []string{"Lead Author", "Contributor"}, submission.AuthorNames())
	assert.Equal(t, "https://ecl.earthchem.org/view.php?id=1047", submission.Url)

	_, err = adapter.ToSubmission(Record{"title": "No Identifier"}, "")
	assert.ErrorIs(t, err, ErrMappingFailed)
}
