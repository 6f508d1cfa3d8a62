package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/targets/workstation/revisions/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"revision": {
					"id": "r1",
					"components": ["kernel", "openssl"],
					"payload_ref": "cfg/r1"
				}
			}
		}`))
	}))
	defer srv.Close()

	rev, err := NewClient(srv.URL).FetchLatest(context.Background(), "workstation")
	require.NoError(t, err)

	assert.Equal(t, "r1", rev.ID)
	assert.Equal(t, []string{"kernel", "openssl"}, rev.Components)
	assert.Equal(t, "cfg/r1", rev.PayloadRef)
}

func TestFetchLatestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchLatest(context.Background(), "workstation")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestFetchLatestInvalidRevision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": {"revision": {"id": ""}}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchLatest(context.Background(), "workstation")
	assert.Error(t, err)
}

func TestFetchLatestUnreachableSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // shut down before the request

	_, err := NewClient(srv.URL).FetchLatest(context.Background(), "workstation")
	assert.Error(t, err)
}
