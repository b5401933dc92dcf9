package medapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/medremind/internal/domain"
)

type capturedRequest struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestClient(t *testing.T, status int) (*Client, *[]capturedRequest) {
	t.Helper()
	var requests []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret"), &requests
}

func TestDoCreatePostsToCollection(t *testing.T) {
	client, requests := newTestClient(t, http.StatusCreated)

	err := client.Do(context.Background(), domain.SyncCreate, "medications", json.RawMessage(`{"id":1,"name":"Ибупрофен"}`))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/medications", req.path)
	assert.Equal(t, "Bearer secret", req.auth)
	assert.JSONEq(t, `{"id":1,"name":"Ибупрофен"}`, req.body)
}

func TestDoUpdatePutsToRecord(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK)

	err := client.Do(context.Background(), domain.SyncUpdate, "treatments", json.RawMessage(`{"id":7,"name":"Компресс"}`))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPut, (*requests)[0].method)
	assert.Equal(t, "/treatments/7", (*requests)[0].path)
}

func TestDoDeleteRemovesRecord(t *testing.T) {
	client, requests := newTestClient(t, http.StatusNoContent)

	err := client.Do(context.Background(), domain.SyncDelete, "appointments", json.RawMessage(`{"id":3}`))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/appointments/3", req.path)
	assert.Empty(t, req.body)
}

func TestDoWrapsServerErrors(t *testing.T) {
	client, _ := newTestClient(t, http.StatusBadGateway)

	err := client.Do(context.Background(), domain.SyncCreate, "medications", json.RawMessage(`{"id":1}`))
	require.Error(t, err)
	var serr *domain.SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "medications", serr.Entity)
}

func TestDoRejectsPayloadWithoutID(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK)

	err := client.Do(context.Background(), domain.SyncUpdate, "medications", json.RawMessage(`{"name":"x"}`))
	require.Error(t, err)
	assert.Empty(t, *requests)
}

func TestDoRejectsUnknownAction(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK)

	err := client.Do(context.Background(), domain.SyncAction("merge"), "medications", json.RawMessage(`{"id":1}`))
	require.Error(t, err)
	assert.Empty(t, *requests)
}
