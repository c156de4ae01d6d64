package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
)

// cloudflare talks to Cloudflare Workers AI. Run URLs are account-scoped
// and model-scoped; responses use a success/result envelope instead of the
// OpenAI choices array.
type cloudflare struct {
	apiKey    string
	accountID string
	baseURL   string
	models    []string
	client    *http.Client
	log       *logger.Logger
}

// NewCloudflare returns the Cloudflare Workers AI adapter.
func NewCloudflare(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return &cloudflare{
		apiKey:    cfg.APIKey,
		accountID: cfg.AccountID,
		baseURL:   "https://api.cloudflare.com/client/v4",
		models:    cfg.Models,
		client:    newHTTPClient(timeout),
		log:       log,
	}
}

func (p *cloudflare) Name() string { return "cloudflare_workers_ai" }

type cloudflareResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Response string `json:"response"`
	} `json:"result"`
}

type cloudflareStreamEvent struct {
	Response string `json:"response"`
}

func (p *cloudflare) runURL(model string) string {
	return fmt.Sprintf("%s/accounts/%s/ai/run/@cf/%s", p.baseURL, p.accountID, model)
}

func (p *cloudflare) post(ctx context.Context, model string, msgs []ChatMessage, stream bool) (*http.Response, error) {
	body := map[string]interface{}{"messages": msgs}
	if stream {
		body["stream"] = true
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.runURL(model), bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

func (p *cloudflare) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.apiKey == "" || p.accountID == "" {
		return "", ErrMissingCredentials
	}
	for _, model := range p.models {
		resp, err := p.post(ctx, model, msgs, false)
		if err != nil {
			p.log.Warn("provider request failed", "provider", p.Name(), "model", model, "error", err.Error())
			continue
		}
		var parsed cloudflareResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil || !parsed.Success {
			p.log.Warn("provider returned no completion", "provider", p.Name(), "model", model)
			continue
		}
		if text := strings.TrimSpace(parsed.Result.Response); text != "" {
			p.log.Debug("provider completion succeeded", "provider", p.Name(), "model", model)
			return text, nil
		}
	}
	return "", ErrNoCompletion
}

func (p *cloudflare) StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error) {
	if p.apiKey == "" || p.accountID == "" {
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
			_ = scanSSE(resp.Body, func(_, data string) bool {
				if data == sseDone {
					return false
				}
				var parsed cloudflareStreamEvent
				if err := json.Unmarshal([]byte(data), &parsed); err != nil {
					return true
				}
				if parsed.Response == "" {
					return true
				}
				select {
				case out <- parsed.Response:
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
