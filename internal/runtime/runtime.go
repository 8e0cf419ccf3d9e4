package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaanilabs/vaachak/internal/api"
	"github.com/vaanilabs/vaachak/internal/audio"
	"github.com/vaanilabs/vaachak/internal/audit"
	"github.com/vaanilabs/vaachak/internal/bus"
	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/files"
	"github.com/vaanilabs/vaachak/internal/generate"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/natsserver"
	"github.com/vaanilabs/vaachak/internal/notify"
	"github.com/vaanilabs/vaachak/internal/synth"
)

// Runtime wires the document-to-speech pipeline together and owns its
// lifecycle: telemetry, optional bus, audit store, synthesis backend, the
// HTTP surface and graceful shutdown.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	version     string
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, version string, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		version: version,
		logger:  logger,
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

	auditStore, err := audit.Open(ctx, r.cfg.Audit, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer auditStore.Close()

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	var busClient *bus.Client
	var notifier *notify.Publisher
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
		notifier = notify.NewPublisher(busClient, r.logger)
	}

	synthesizer, configured, err := r.buildSynthesizer()
	if err != nil {
		return err
	}

	store := job.NewMemoryStore()
	generator := generate.NewService(r.cfg.Synth, store, synthesizer, r.logger).
		WithRecorder(auditStore)
	if notifier != nil {
		generator.WithSink(notifier)
	}

	assembler, err := audio.NewAssembler(r.cfg.Encoder, r.cfg.Paths.SpeechOutputDir, r.cfg.Synth.DefaultSampleRate, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build assembler: %w", err)
	}

	apiServer := api.NewServer(r.cfg, api.Deps{
		Files:      files.NewDiscovery(r.cfg.Paths.DocumentsDir),
		Generator:  generator,
		Assembler:  assembler,
		Notifier:   notifier,
		Recorder:   auditStore,
		Version:    r.version,
		Configured: configured,
	}, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	mux.Handle("/api/", apiServer.Handler())

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
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("synth_mode", r.cfg.Synth.Mode),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildSynthesizer selects the backend by configured mode and returns a
// probe for the health endpoint.
func (r *Runtime) buildSynthesizer() (synth.Synthesizer, func() bool, error) {
	switch r.cfg.Synth.Mode {
	case "remote":
		remote := synth.NewRemoteSynth(r.cfg.Synth, r.logger)
		return remote, remote.Configured, nil
	case "exec":
		execSynth, err := synth.NewExecSynth(r.cfg.Synth.Command)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build exec synthesizer: %w", err)
		}
		return execSynth, func() bool { return true }, nil
	case "mock":
		return synth.NewMockSynth(r.cfg.Synth.DefaultSampleRate), func() bool { return true }, nil
	default:
		return nil, nil, fmt.Errorf("unknown synth mode %q", r.cfg.Synth.Mode)
	}
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
