package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rpg-nexus/backend/pkg/logger"
)

const (
	cohereRerankURL    = "https://api.cohere.com/v2/rerank"
	defaultRerankModel = "rerank-v3.5"
)

// Reranker reorders candidate documents by relevance to a query and keeps
// the best topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, topN int) ([]string, error)
}

// cohereReranker scores candidates with the Cohere v2 rerank endpoint.
type cohereReranker struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

// NewCohereReranker returns a Reranker backed by the Cohere rerank API.
func NewCohereReranker(apiKey string, timeout time.Duration, log *logger.Logger) Reranker {
	return &cohereReranker{
		apiKey:   apiKey,
		model:    defaultRerankModel,
		endpoint: cohereRerankURL,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *cohereReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if r.apiKey == "" {
		return nil, fmt.Errorf("rerank: missing api key")
	}

	body := map[string]interface{}{
		"model":     r.model,
		"query":     query,
		"documents": docs,
		"top_n":     topN,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank returned status %d", resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	ranked := make([]string, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(docs) {
			continue
		}
		ranked = append(ranked, docs[result.Index])
	}
	return ranked, nil
}
