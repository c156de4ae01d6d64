package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
)

// ChromaClient is a narrow REST client for the Chroma vector store: it
// resolves one collection lazily, adds documents and runs filtered
// similarity queries. Embedding happens server side.
type ChromaClient struct {
	baseURL    string
	collection string
	client     *http.Client
	log        *logger.Logger

	mu           sync.Mutex
	collectionID string
}

// NewChromaClient returns a client for the configured Chroma instance.
func NewChromaClient(cfg *config.Config, log *logger.Logger) *ChromaClient {
	return &ChromaClient{
		baseURL:    cfg.Chroma.BaseURL,
		collection: cfg.Chroma.Collection,
		client:     &http.Client{Timeout: cfg.Chroma.Timeout},
		log:        log,
	}
}

func (c *ChromaClient) postJSON(ctx context.Context, url string, body interface{}, dest interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chroma returned status %d", resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// ensureCollection resolves the collection id, creating the collection on
// first use. The id is cached for the life of the client.
func (c *ChromaClient) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var out struct {
		ID string `json:"id"`
	}
	body := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/collections", body, &out); err != nil {
		return "", fmt.Errorf("get-or-create collection %q: %w", c.collection, err)
	}
	c.collectionID = out.ID
	return c.collectionID, nil
}

// Add writes one document tagged with metadata into the collection.
func (c *ChromaClient) Add(ctx context.Context, id, document string, metadata map[string]interface{}) error {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"ids":       []string{id},
		"documents": []string{document},
		"metadatas": []map[string]interface{}{metadata},
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, collectionID)
	return c.postJSON(ctx, url, body, nil)
}

// Query runs a similarity search filtered by metadata and returns the
// matched documents in similarity order.
func (c *ChromaClient) Query(ctx context.Context, query string, topK int, where map[string]interface{}) ([]string, error) {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"query_texts": []string{query},
		"n_results":   topK,
		"where":       where,
	}
	var out struct {
		Documents [][]string `json:"documents"`
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, collectionID)
	if err := c.postJSON(ctx, url, body, &out); err != nil {
		return nil, err
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}
	return out.Documents[0], nil
}

// Ping checks the Chroma heartbeat endpoint.
func (c *ChromaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chroma heartbeat returned status %d", resp.StatusCode)
	}
	return nil
}
