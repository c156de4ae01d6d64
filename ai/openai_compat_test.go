package ai

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

func newTestCompat(t *testing.T, endpoint string, models []string) *openAICompat {
	t.Helper()
	cfg := config.ProviderConfig{APIKey: "test-key", Models: models}
	return newOpenAICompat("test", endpoint, cfg, 5*time.Second, nil, logger.New(logger.DefaultConfig()))
}

func TestOpenAICompatModelFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if body.Model == "primary" {
			w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  a torch gutters  "}}]}`))
	}))
	defer srv.Close()

	p := newTestCompat(t, srv.URL, []string{"primary", "secondary"})

	got, err := p.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "go"}})

	require.NoError(t, err)
	assert.Equal(t, "a torch gutters", got)
}

func TestOpenAICompatExhaustedModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"nope"}}`))
	}))
	defer srv.Close()

	p := newTestCompat(t, srv.URL, []string{"a", "b"})

	_, err := p.Complete(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNoCompletion)
}

func TestOpenAICompatMissingKey(t *testing.T) {
	p := newTestCompat(t, "http://invalid", []string{"a"})
	p.apiKey = ""

	_, err := p.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = p.StreamComplete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestOpenAICompatStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"the \"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"end\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := newTestCompat(t, srv.URL, []string{"only"})

	ch, err := p.StreamComplete(context.Background(), nil)
	require.NoError(t, err)

	var got string
	for frag := range ch {
		got += frag
	}
	assert.Equal(t, "the end", got)
}
