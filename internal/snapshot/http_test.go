package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStorePatchesGame(t *testing.T) {
	var (
		method, path, secret string
		got                  Record
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		secret = r.Header.Get("X-Admin-Secret")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL+"/", "hunter2")
	rec := Record{Code: "ABCD", Players: []string{"alice", "bob"}, Winner: "bob", Status: StatusFinished, Reason: "retire"}
	require.NoError(t, store.Save(context.Background(), rec))

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/game/ABCD", path)
	assert.Equal(t, "hunter2", secret)
	assert.Equal(t, "bob", got.Winner)
	assert.Equal(t, StatusFinished, got.Status)
}

func TestHTTPStoreErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := NewHTTPStore(server.URL, "").Save(context.Background(), Record{Code: "ABCD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
