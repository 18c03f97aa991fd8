package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minutelabs/minute-core/internal/ai"
	"github.com/minutelabs/minute-core/internal/bus"
	"github.com/minutelabs/minute-core/internal/config"
	"github.com/minutelabs/minute-core/internal/engine"
	"github.com/minutelabs/minute-core/internal/models"
	"github.com/minutelabs/minute-core/internal/natsserver"
	"github.com/minutelabs/minute-core/internal/recording"
	"github.com/minutelabs/minute-core/internal/store"
)

// Runtime wires the meeting-assistant core together and owns its
// lifecycle: telemetry, embedded bus, store, engine supervisor, recording
// controller, AI orchestrator and the HTTP API.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	st, err := store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	supervisor := engine.NewSupervisor(
		r.cfg.Engine.PackagedRoot,
		r.cfg.Engine.DevRoot,
		r.cfg.Engine.Entry,
		r.cfg.Engine.ExtraArgs,
		busCfg.Servers[0],
		r.logger,
	)
	if err := supervisor.Start(); err != nil {
		// recording will surface the failure; a later start may retry
		r.logger.Error("engine start failed", slog.String("error", err.Error()))
	}
	defer supervisor.Stop()

	commandTimeout := time.Duration(r.cfg.Engine.CommandMS) * time.Millisecond
	link := engine.NewLink(busClient, commandTimeout, r.logger)
	controller := recording.NewController(link, st, r.logger)

	unsubSegments, err := link.SubscribeSegments(controller.HandleSegment)
	if err != nil {
		return fmt.Errorf("failed to subscribe to segments: %w", err)
	}
	defer unsubSegments()

	unsubState, err := link.SubscribeState(controller.HandleStateChange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to engine state: %w", err)
	}
	defer unsubState()

	orchestrator := ai.NewOrchestrator(r.cfg.AI, r.logger)
	modelManager, err := models.NewManager(r.cfg.Models, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup model manager: %w", err)
	}

	api := &apiHandlers{
		store:        st,
		controller:   controller,
		orchestrator: orchestrator,
		models:       modelManager,
		log:          r.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	api.register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	supervisor.Stop()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
