package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// openRouter is the paid safety net at the end of the chain. Unlike the
// free providers it sends a single request: the base model plus a
// vendor-side fallback list, so OpenRouter handles model failover itself.
type openRouter struct {
	apiKey    string
	endpoint  string
	baseModel string
	fallbacks []string
	client    *http.Client
	log       *logger.Logger
}

// NewOpenRouter returns the OpenRouter adapter. The first entry of the
// model list is the base model, the rest go into the fallback list.
func NewOpenRouter(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	p := &openRouter{
		apiKey:   cfg.APIKey,
		endpoint: openRouterURL,
		client:   newHTTPClient(timeout),
		log:      log,
	}
	if len(cfg.Models) > 0 {
		p.baseModel = cfg.Models[0]
		p.fallbacks = cfg.Models[1:]
	}
	return p
}

func (p *openRouter) Name() string { return "openrouter" }

func (p *openRouter) post(ctx context.Context, msgs []ChatMessage, stream bool) (*http.Response, error) {
	body := map[string]interface{}{
		"stream":    stream,
		"model":     p.baseModel,
		"models":    p.fallbacks,
		"messages":  msgs,
		"reasoning": map[string]interface{}{"exclude": true},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

func (p *openRouter) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingCredentials
	}
	resp, err := p.post(ctx, msgs, false)
	if err != nil {
		p.log.Warn("provider request failed", "provider", p.Name(), "error", err.Error())
		return "", ErrNoCompletion
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.Error != nil || len(parsed.Choices) == 0 {
		p.log.Warn("provider returned no completion", "provider", p.Name())
		return "", ErrNoCompletion
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoCompletion
	}
	return text, nil
}

func (p *openRouter) StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	out := make(chan string)
	go func() {
		defer close(out)
		resp, err := p.post(ctx, msgs, true)
		if err != nil {
			p.log.Warn("provider stream request failed", "provider", p.Name(), "error", err.Error())
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			p.log.Warn("provider stream rejected", "provider", p.Name(), "status", resp.StatusCode)
			return
		}
		streamOpenAIBody(ctx, resp, out)
	}()
	return out, nil
}
