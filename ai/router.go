package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/pkg/resilience"
	"rpg-nexus/backend/shared/observability"
)

// Router walks an ordered provider chain. The first provider that produces
// content wins; the rest are never invoked. Each provider sits behind its
// own circuit breaker so a vendor outage is skipped for the retry window
// instead of being probed on every turn.
type Router struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
	fallback  string
	timeout   time.Duration
	log       *logger.Logger
	metrics   *observability.Metrics
}

// NewRouter builds a router over the given providers, in priority order.
func NewRouter(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, providers ...Provider) *Router {
	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.New(resilience.DefaultConfig("llm:"+p.Name()), log)
	}
	return &Router{
		providers: providers,
		breakers:  breakers,
		fallback:  cfg.LLM.FallbackText,
		timeout:   cfg.LLM.RouterTimeout,
		log:       log,
		metrics:   metrics,
	}
}

// DefaultProviders returns the canonical provider chain: the free vendors
// in priority order, with OpenRouter (paid) last.
func DefaultProviders(cfg *config.Config, log *logger.Logger) []Provider {
	t := cfg.LLM.RequestTimeout
	return []Provider{
		NewGoogleAIStudio(cfg.LLM.Google, t, log),
		NewCerebras(cfg.LLM.Cerebras, t, log),
		NewGroq(cfg.LLM.Groq, t, log),
		NewNvidia(cfg.LLM.Nvidia, t, log),
		NewCohere(cfg.LLM.Cohere, t, log),
		NewTogether(cfg.LLM.Together, t, log),
		NewCloudflare(cfg.LLM.Cloudflare, t, log),
		NewOpenRouter(cfg.LLM.OpenRouter, t, log),
	}
}

// Complete returns the first non-empty completion from the chain. When
// every provider fails it returns the configured fallback narrative, never
// an error: the battle must keep moving even with every vendor down.
func (r *Router) Complete(ctx context.Context, msgs []ChatMessage) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for _, p := range r.providers {
		var text string
		err := r.breakers[p.Name()].Execute(func() error {
			t, err := p.Complete(ctx, msgs)
			if err != nil {
				return err
			}
			if strings.TrimSpace(t) == "" {
				return ErrNoCompletion
			}
			text = t
			return nil
		})
		if err == nil {
			r.log.Info("completion served", "provider", p.Name())
			return text
		}
		r.recordFailure(ctx, p.Name(), err)
	}

	r.log.Error("all providers failed, serving fallback narrative")
	return r.fallback
}

// Stream returns a channel of fragments from the first provider that
// yields at least one. A provider failing before its first fragment is
// skipped silently; once a fragment is delivered the stream is committed
// to that provider. All providers failing closes the channel with zero
// fragments.
func (r *Router) Stream(ctx context.Context, msgs []ChatMessage) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		for _, p := range r.providers {
			var rest <-chan string
			err := r.breakers[p.Name()].Execute(func() error {
				ch, err := p.StreamComplete(ctx, msgs)
				if err != nil {
					return err
				}
				first, ok := <-ch
				if !ok {
					return ErrNoCompletion
				}
				select {
				case out <- first:
				case <-ctx.Done():
					return ctx.Err()
				}
				rest = ch
				return nil
			})
			if err == nil {
				r.log.Info("stream served", "provider", p.Name())
				for frag := range rest {
					select {
					case out <- frag:
					case <-ctx.Done():
						return
					}
				}
				return
			}
			r.recordFailure(ctx, p.Name(), err)
			if ctx.Err() != nil {
				return
			}
		}
		r.log.Error("all providers failed to stream")
	}()
	return out
}

func (r *Router) recordFailure(ctx context.Context, provider string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		r.log.Warn("provider skipped, circuit open", "provider", provider)
		return
	}
	r.metrics.CountProviderFallback(ctx, provider)
	r.log.Warn("provider failed, advancing chain", "provider", provider, "error", err.Error())
}
