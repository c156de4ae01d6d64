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

// openAICompat adapts any vendor exposing an OpenAI-compatible chat
// completions endpoint. Cerebras, Groq, NVIDIA NIM and Together all share
// this wire shape.
type openAICompat struct {
	name     string
	endpoint string
	apiKey   string
	models   []string
	extra    map[string]interface{}
	client   *http.Client
	log      *logger.Logger
}

func newOpenAICompat(name, endpoint string, cfg config.ProviderConfig, timeout time.Duration, extra map[string]interface{}, log *logger.Logger) *openAICompat {
	return &openAICompat{
		name:     name,
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		models:   cfg.Models,
		extra:    extra,
		client:   newHTTPClient(timeout),
		log:      log,
	}
}

// NewCerebras returns the Cerebras chat completions adapter.
func NewCerebras(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return newOpenAICompat("cerebras", "https://api.cerebras.ai/v1/chat/completions", cfg, timeout, nil, log)
}

// NewGroq returns the Groq chat completions adapter.
func NewGroq(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return newOpenAICompat("groq", "https://api.groq.com/openai/v1/chat/completions", cfg, timeout, nil, log)
}

// NewNvidia returns the NVIDIA NIM adapter. Reasoning output is disabled
// through the chat template so narrative text comes back clean.
func NewNvidia(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	extra := map[string]interface{}{
		"chat_template_kwargs": map[string]interface{}{"thinking": false},
	}
	return newOpenAICompat("nvidia_nim", "https://integrate.api.nvidia.com/v1/chat/completions", cfg, timeout, extra, log)
}

// NewTogether returns the Together AI adapter.
func NewTogether(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return newOpenAICompat("together", "https://api.together.xyz/v1/chat/completions", cfg, timeout, nil, log)
}

func (p *openAICompat) Name() string { return p.name }

type chatCompletionResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *openAICompat) body(model string, msgs []ChatMessage, stream bool) map[string]interface{} {
	body := map[string]interface{}{
		"model":    model,
		"messages": msgs,
	}
	if stream {
		body["stream"] = true
	}
	for k, v := range p.extra {
		body[k] = v
	}
	return body
}

func (p *openAICompat) post(ctx context.Context, payload map[string]interface{}) (*http.Response, error) {
	raw, err := json.Marshal(payload)
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

func (p *openAICompat) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingCredentials
	}
	for _, model := range p.models {
		resp, err := p.post(ctx, p.body(model, msgs, false))
		if err != nil {
			p.log.Warn("provider request failed", "provider", p.name, "model", model, "error", err.Error())
			continue
		}
		var parsed chatCompletionResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil || parsed.Error != nil || len(parsed.Choices) == 0 {
			p.log.Warn("provider returned no completion", "provider", p.name, "model", model)
			continue
		}
		if text := strings.TrimSpace(parsed.Choices[0].Message.Content); text != "" {
			p.log.Debug("provider completion succeeded", "provider", p.name, "model", model)
			return text, nil
		}
	}
	return "", ErrNoCompletion
}

func (p *openAICompat) StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for _, model := range p.models {
			resp, err := p.post(ctx, p.body(model, msgs, true))
			if err != nil {
				p.log.Warn("provider stream request failed", "provider", p.name, "model", model, "error", err.Error())
				continue
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				p.log.Warn("provider stream rejected", "provider", p.name, "model", model, "status", resp.StatusCode)
				continue
			}
			delivered := streamOpenAIBody(ctx, resp, out)
			resp.Body.Close()
			if delivered {
				return
			}
		}
	}()
	return out, nil
}

// streamOpenAIBody forwards delta fragments from an OpenAI-style SSE body.
// Returns true once at least one fragment was delivered, which commits the
// stream to this model even if it later breaks mid-flight.
func streamOpenAIBody(ctx context.Context, resp *http.Response, out chan<- string) bool {
	delivered := false
	_ = scanSSE(resp.Body, func(_, data string) bool {
		if data == sseDone {
			return false
		}
		var parsed chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			return true
		}
		if len(parsed.Choices) == 0 {
			return true
		}
		content := parsed.Choices[0].Delta.Content
		if content == "" {
			return true
		}
		select {
		case out <- content:
			delivered = true
			return true
		case <-ctx.Done():
			return false
		}
	})
	return delivered
}
