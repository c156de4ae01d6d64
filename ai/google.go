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

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// googleAIStudio talks to the Google AI Studio generateContent REST API.
// Its wire format differs from the OpenAI shape: turns are "contents" with
// role user/model, and the system prompt travels as systemInstruction.
type googleAIStudio struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
	log     *logger.Logger
}

// NewGoogleAIStudio returns the Google AI Studio adapter.
func NewGoogleAIStudio(cfg config.ProviderConfig, timeout time.Duration, log *logger.Logger) Provider {
	return &googleAIStudio{
		apiKey:  cfg.APIKey,
		baseURL: googleBaseURL,
		models:  cfg.Models,
		client:  newHTTPClient(timeout),
		log:     log,
	}
}

func (p *googleAIStudio) Name() string { return "google_aistudio" }

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// buildRequest converts chat messages to the Google contents shape. Gemma
// models reject systemInstruction, so for those the system text is folded
// into the first user turn instead.
func buildGoogleRequest(model string, msgs []ChatMessage) googleRequest {
	var req googleRequest
	var system string
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			req.Contents = append(req.Contents, googleContent{Role: "model", Parts: []googlePart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}
	if system == "" {
		return req
	}
	if strings.HasPrefix(model, "gemma") {
		for i := range req.Contents {
			if req.Contents[i].Role == "user" {
				req.Contents[i].Parts[0].Text = system + "\n" + req.Contents[i].Parts[0].Text
				break
			}
		}
		return req
	}
	req.SystemInstruction = &googleContent{Parts: []googlePart{{Text: system}}}
	return req
}

func (p *googleAIStudio) post(ctx context.Context, url string, body googleRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)
	return p.client.Do(req)
}

func (p *googleAIStudio) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingCredentials
	}
	for _, model := range p.models {
		url := fmt.Sprintf("%s/%s:generateContent", p.baseURL, model)
		resp, err := p.post(ctx, url, buildGoogleRequest(model, msgs))
		if err != nil {
			p.log.Warn("provider request failed", "provider", p.Name(), "model", model, "error", err.Error())
			continue
		}
		var parsed googleResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil || parsed.Error != nil || len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			p.log.Warn("provider returned no completion", "provider", p.Name(), "model", model)
			continue
		}
		var b strings.Builder
		for _, part := range parsed.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			p.log.Debug("provider completion succeeded", "provider", p.Name(), "model", model)
			return text, nil
		}
	}
	return "", ErrNoCompletion
}

func (p *googleAIStudio) StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for _, model := range p.models {
			url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", p.baseURL, model)
			resp, err := p.post(ctx, url, buildGoogleRequest(model, msgs))
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
				var parsed googleResponse
				if err := json.Unmarshal([]byte(data), &parsed); err != nil {
					return true
				}
				if len(parsed.Candidates) == 0 {
					return true
				}
				for _, part := range parsed.Candidates[0].Content.Parts {
					if part.Text == "" {
						continue
					}
					select {
					case out <- part.Text:
						delivered = true
					case <-ctx.Done():
						return false
					}
				}
				return true
			})
			resp.Body.Close()
			if delivered {
				return
			}
		}
	}()
	return out, nil
}
