package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsLatestVersion(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"id": 11, "version": 3}`))
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL+"/", WithBasicAuth("key", "secret"))
	id, err := client.EnsureSchema(context.Background(), "progression_records-value", recordCreatedSchema)
	require.NoError(t, err)
	assert.Equal(t, 11, id)
	assert.Equal(t, []string{"GET /subjects/progression_records-value/versions/latest"}, paths)
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			assert.Equal(t, registryContentType, r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
			_, _ = w.Write([]byte(`{"id": 5}`))
		}
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)
	id, err := client.EnsureSchema(context.Background(), "progression_social_events-value", friendshipAcceptedSchema)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	assert.Equal(t, "JSON", registered["schemaType"])
	assert.Equal(t, friendshipAcceptedSchema, registered["schema"])
}

func TestEnsureSchemaSurfacesRegistryErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error_code": 409, "message": "incompatible schema"}`))
	}))
	defer server.Close()

	_, err := NewSchemaRegistryClient(server.URL).EnsureSchema(context.Background(), "s", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible schema")
	assert.Contains(t, err.Error(), "409")
}
