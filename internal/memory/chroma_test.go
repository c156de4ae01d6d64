package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
)

func newTestChroma(t *testing.T, baseURL string) *ChromaClient {
	t.Helper()
	cfg := &config.Config{}
	cfg.Chroma.BaseURL = baseURL
	cfg.Chroma.Collection = "test_history"
	cfg.Chroma.Timeout = 5 * time.Second
	return NewChromaClient(cfg, logger.New(logger.DefaultConfig()))
}

func TestChromaAddResolvesCollectionOnce(t *testing.T) {
	collectionCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		collectionCalls++
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test_history", body["name"])
		assert.Equal(t, true, body["get_or_create"])
		json.NewEncoder(w).Encode(map[string]string{"id": "col-123"})
	})
	mux.HandleFunc("/api/v1/collections/col-123/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs       []string                 `json:"ids"`
			Documents []string                 `json:"documents"`
			Metadatas []map[string]interface{} `json:"metadatas"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.IDs, 1)
		assert.Equal(t, []string{"a memory"}, body.Documents)
		assert.Equal(t, "7", body.Metadatas[0]["character_id"])
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestChroma(t, srv.URL)

	require.NoError(t, c.Add(context.Background(), "id-1", "a memory", characterFilter(7)))
	require.NoError(t, c.Add(context.Background(), "id-2", "a memory", characterFilter(7)))
	assert.Equal(t, 1, collectionCalls, "collection id must be cached")
}

func TestChromaQueryReturnsFirstResultSet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "col-123"})
	})
	mux.HandleFunc("/api/v1/collections/col-123/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QueryTexts []string               `json:"query_texts"`
			NResults   int                    `json:"n_results"`
			Where      map[string]interface{} `json:"where"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"goblins"}, body.QueryTexts)
		assert.Equal(t, 10, body.NResults)
		json.NewEncoder(w).Encode(map[string][][]string{
			"documents": {{"first", "second"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestChroma(t, srv.URL)

	docs, err := c.Query(context.Background(), "goblins", 10, characterFilter(7))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, docs)
}

func TestChromaQueryServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestChroma(t, srv.URL)

	_, err := c.Query(context.Background(), "goblins", 10, nil)
	assert.Error(t, err)
}
