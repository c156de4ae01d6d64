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

const cohereChatURL = "https://api.cohere.com/v2/chat"

// cohere talks to the Cohere v2 chat API. Message content travels as typed
// content blocks; streaming uses named SSE events.
type cohere struct {
	apiKey   string
	endpoint string
	models   []string
	client   *http.Client
	log      *logger.Logger
}

// NewCohere returns the Cohere v2 chat adapter.
func NewCohere(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return &cohere{
		apiKey:   cfg.APIKey,
		endpoint: cohereChatURL,
		models:   cfg.Models,
		client:   newHTTPClient(timeout),
		log:      log,
	}
}

func (p *cohere) Name() string { return "cohere" }

type cohereContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cohereMessage struct {
	Role    string               `json:"role"`
	Content []cohereContentBlock `json:"content"`
}

type cohereResponse struct {
	Message struct {
		Content []cohereContentBlock `json:"content"`
	} `json:"message"`
}

type cohereStreamEvent struct {
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"delta"`
}

func toCohereMessages(msgs []ChatMessage) []cohereMessage {
	out := make([]cohereMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, cohereMessage{
			Role:    m.Role,
			Content: []cohereContentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return out
}

func (p *cohere) post(ctx context.Context, model string, msgs []ChatMessage, stream bool) (*http.Response, error) {
	body := map[string]interface{}{
		"model":    model,
		"messages": toCohereMessages(msgs),
	}
	if stream {
		body["stream"] = true
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

func (p *cohere) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingCredentials
	}
	for _, model := range p.models {
		resp, err := p.post(ctx, model, msgs, false)
		if err != nil {
			p.log.Warn("provider request failed", "provider", p.Name(), "model", model, "error", err.Error())
			continue
		}
		var parsed cohereResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil || len(parsed.Message.Content) == 0 {
			p.log.Warn("provider returned no completion", "provider", p.Name(), "model", model)
			continue
		}
		if text := strings.TrimSpace(parsed.Message.Content[0].Text); text != "" {
			p.log.Debug("provider completion succeeded", "provider", p.Name(), "model", model)
			return text, nil
		}
	}
	return "", ErrNoCompletion
}

func (p *cohere) StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for _, model := range p.models {
			resp, err := p.post(ctx, model, msgs, true)
			if err != nil {
				p.log.Warn("provider stream request failed", "provider", p.Name(), "model", model, "error", err.Error())
				continue
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				p.log.Warn("provider stream rejected", "provider", p.Name(), "model", model, "status", resp.StatusCode)
				continue
			}
			delivered := false
			_ = scanSSE(resp.Body, func(event, data string) bool {
				if data == sseDone {
					return false
				}
				if event != "content-delta" {
					return true
				}
				var parsed cohereStreamEvent
				if err := json.Unmarshal([]byte(data), &parsed); err != nil {
					return true
				}
				text := parsed.Delta.Message.Content.Text
				if text == "" {
					return true
				}
				select {
				case out <- text:
					delivered = true
					return true
				case <-ctx.Done():
					return false
				}
			})
			resp.Body.Close()
			if delivered {
				return
			}
		}
	}()
	return out, nil
}
