package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"submithub/broker/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hydroshareStub mimics the hsapi resource endpoints against an in memory
// record table.
func hydroshareStub(t *testing.T, records map[string]Record) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /hsapi/resource/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		records["abc123"] = Record{}
		err := json.NewEncoder(w).Encode(map[string]string{"resource_id": "abc123"})
		require.NoError(t, err)
	})

	mux.HandleFunc("GET /hsapi/resource/{id}/scimeta/elements/", func(w http.ResponseWriter, r *http.Request) {
		record, ok := records[r.PathValue("id")]
		if !ok {
			http.Error(w, "no resource found", http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(record))
	})

	mux.HandleFunc("PUT /hsapi/resource/{id}/scimeta/elements/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := records[r.PathValue("id")]; !ok {
			http.Error(w, "no resource found", http.StatusNotFound)
			return
		}
		var record Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		record["identifier"] = "http://stub.hydroshare.org/resource/" + r.PathValue("id")
		records[r.PathValue("id")] = record
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("DELETE /hsapi/resource/{id}/", func(w http.ResponseWriter, r *http.Request) {
		delete(records, r.PathValue("id"))
	})

	return httptest.NewServer(mux)
}

func TestHydroShareRecordLifecycle(t *testing.T) {
	records := map[string]Record{}
	server := hydroshareStub(t, records)
	defer server.Close()

	adapter := NewHydroShareAdapter(server.URL, "https://www.hydroshare.org/resource/%v")
	ctx := context.Background()

	metadata := Record{
		"title":    "Watershed Data",
		"creators": []interface{}{map[string]interface{}{"name": "Ada Lovelace"}, "Grace Hopper"},
		"modified": "2022-03-01T12:00:00",
	}

	identifier, err := adapter.CreateRecord(ctx, "test-token", metadata)
	require.NoError(t, err)
	assert.Equal(t, "abc123", identifier)

	record, err := adapter.UpdateRecord(ctx, "test-token", identifier, metadata)
	require.NoError(t, err)
	assert.Equal(t, "Watershed Data", record["title"])

	submission, err := adapter.ToSubmission(record, identifier)
	require.NoError(t, err)
	assert.Equal(t, schema.RepoHydroShare, submission.RepositoryType)
	// The identifier comes from the record's identifier url, not the
	// create response.
	assert.Equal(t, "abc123", submission.Identifier)
	assert.Equal(t, "Watershed Data", submission.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Grace Hopper"}, submission.AuthorNames())
	assert.Equal(t, "https://www.hydroshare.org/resource/abc123", submission.Url)
	assert.Equal(t, 2022, submission.SubmittedAt.Year())

	require.NoError(t, adapter.DeleteRecord(ctx, "test-token", identifier))
	_, err = adapter.GetRecord(ctx, "test-token", identifier)
	assert.Error(t, err)
}

func TestHydroShareRequestError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer server.Close()

	adapter := NewHydroShareAdapter(server.URL, "https://www.hydroshare.org/resource/%v")

	_, err := adapter.GetRecord(context.Background(), "test-token", "abc123")

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "permission denied")
}

func TestHydroShareToSubmissionMissingTitle(t *testing.T) {
	adapter := NewHydroShareAdapter("http://unused", "https://www.hydroshare.org/resource/%v")

	_, err := adapter.ToSubmission(Record{"creators": []interface{}{"A"}}, "abc123")
	assert.ErrorIs(t, err, ErrMappingFailed)
}

func TestHydroShareIdentifierFromRecordUrl(t *testing.T) {
	adapter := NewHydroShareAdapter("http://unused", "https://www.hydroshare.org/resource/%v")

	for _, recordUrl := range []string{
		"http://www.hydroshare.org/resource/xyz789",
		"http://www.hydroshare.org/resource/xyz789/",
	} {
		submission, err := adapter.ToSubmission(Record{"title": "T", "identifier": recordUrl}, "ignored")
		require.NoError(t, err)
		assert.Equal(t, "xyz789", submission.Identifier, fmt.Sprintf("url %v", recordUrl))
	}
}
