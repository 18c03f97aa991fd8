package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/minutelabs/minute-core/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Orchestrator turns a meeting snapshot into a persisted-ready update: it
// selects the configured provider, runs the single bounded call, and
// parses the reply. Retrying is a caller decision.
type Orchestrator struct {
	cfg    config.AIConfig
	log    *slog.Logger
	client *http.Client

	mu       sync.Mutex
	inflight map[string]bool

	updates metric.Int64Counter
	fails   metric.Int64Counter
}

func NewOrchestrator(cfg config.AIConfig, log *slog.Logger) *Orchestrator {
	meter := otel.Meter("minute-core/ai")
	updates, _ := meter.Int64Counter("meeting_updates_total",
		metric.WithDescription("Meeting updates generated"))
	fails, _ := meter.Int64Counter("meeting_update_failures_total",
		metric.WithDescription("Meeting update attempts that failed"))

	return &Orchestrator{
		cfg:      cfg,
		log:      log.With(slog.String("component", "ai")),
		client:   &http.Client{},
		inflight: make(map[string]bool),
		updates:  updates,
		fails:    fails,
	}
}

// providerFor builds the adapter for the configured backend. Unrecognized
// values fail before any network traffic.
func (o *Orchestrator) providerFor(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.Model, o.client)
	case "anthropic":
		return newAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicEndpoint, cfg.Model, o.client)
	case "openrouter":
		return newOpenRouterProvider(cfg.OpenRouterKey, cfg.OpenRouterAPI, cfg.Model, o.client)
	case "ollama":
		return newOllamaProvider(cfg.OllamaEndpoint, cfg.Model, o.client)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, cfg.Provider)
	}
}

// Update runs one meeting update for a session. Updates are single-flight
// per session: a second request while one is outstanding fails fast
// instead of racing it.
func (o *Orchestrator) Update(ctx context.Context, sessionID string, req Request) (Result, error) {
	o.mu.Lock()
	if o.inflight[sessionID] {
		o.mu.Unlock()
		return Result{}, ErrUpdateInFlight
	}
	o.inflight[sessionID] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, sessionID)
		o.mu.Unlock()
	}()

	provider, err := o.providerFor(o.cfg)
	if err != nil {
		return Result{}, err
	}

	attrs := metric.WithAttributes(attribute.String("provider", provider.Name()))

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	started := time.Now()
	raw, err := provider.Complete(callCtx, req)
	if err != nil {
		o.fails.Add(ctx, 1, attrs)
		return Result{}, err
	}

	summary, agenda, err := parseUpdate(raw, req.Agenda)
	if err != nil {
		o.fails.Add(ctx, 1, attrs)
		return Result{}, err
	}

	o.updates.Add(ctx, 1, attrs)
	o.log.Info("meeting update generated",
		slog.String("session_id", sessionID),
		slog.String("provider", provider.Name()),
		slog.String("model", provider.Model()),
		slog.Duration("latency", time.Since(started)))

	return Result{
		Summary:   summary,
		Agenda:    agenda,
		ModelUsed: provider.Model(),
	}, nil
}
