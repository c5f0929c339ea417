package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/voxkit/voxd/internal/config"
	"github.com/voxkit/voxd/internal/engine"
	"github.com/voxkit/voxd/internal/fsm"
	"github.com/voxkit/voxd/internal/ipc"
	"github.com/voxkit/voxd/internal/metrics"
	"github.com/voxkit/voxd/internal/recognition"
	"github.com/voxkit/voxd/internal/sound"
)

// commandRun owns the control socket for the lifetime of the process and
// serves session commands from other voxd invocations. The daemon boots
// idle; a session begins when the first start or toggle arrives.
func (r Runner) commandRun(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	cfg := cfgLoaded.Config

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: another voxd daemon already owns %s\n", socketPath)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("engine setup failed", "backend", cfg.Engine.Backend, "error", err.Error())
		return 1
	}
	defer func() { _ = eng.Close() }()

	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
		metricsSrv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metrics.Handler()}
		go func() {
			if serveErr := metricsSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Listen, "error", serveErr.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics exposed", "addr", cfg.Metrics.Listen)
	}

	orch := recognition.NewStreamingOrchestrator(cfg, eng, logger, sound.NewNotifier(cfg.Sounds, logger), m)
	defer func() { _ = orch.Close() }()

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- ipc.Serve(serveCtx, listener, newDaemon(orch, logger))
	}()

	logger.Info("daemon ready",
		"socket", socketPath,
		"backend", cfg.Engine.Backend,
		"streaming", orch.StreamingActive(),
	)
	fmt.Fprintf(r.Stdout, "voxd daemon ready on %s\n", socketPath)

	<-ctx.Done()
	logger.Info("shutdown requested")

	if stopErr := orch.Stop(); stopErr != nil {
		logger.Warn("stop session on shutdown", "error", stopErr.Error())
	}
	cancelServe()
	if serveErr := <-serveErrCh; serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: control server failed: %v\n", serveErr)
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

// daemon translates control requests into orchestrator calls.
type daemon struct {
	orch   *recognition.StreamingOrchestrator
	logger *slog.Logger
}

func newDaemon(orch *recognition.StreamingOrchestrator, logger *slog.Logger) *daemon {
	return &daemon{orch: orch, logger: logger}
}

func (d *daemon) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStart:
		return d.startSession(ctx)
	case ipc.CommandStop:
		return d.stopSession()
	case ipc.CommandToggle:
		if d.orch.State() == fsm.StateIdle {
			return d.startSession(ctx)
		}
		return d.stopSession()
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(d.orch.State())}
	case ipc.CommandStats:
		return d.statsSnapshot()
	case ipc.CommandSetDevice:
		if req.DeviceIndex == nil {
			return ipc.Response{Error: "set-device requires a device_index"}
		}
		d.orch.SetAudioDevice(*req.DeviceIndex)
		return ipc.Response{
			OK:      true,
			State:   string(d.orch.State()),
			Message: fmt.Sprintf("audio device set to %d", *req.DeviceIndex),
		}
	default:
		return ipc.Response{Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (d *daemon) startSession(ctx context.Context) ipc.Response {
	if err := d.orch.Start(ctx); err != nil {
		d.logger.Error("start session failed", "error", err.Error())
		return ipc.Response{State: string(d.orch.State()), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(d.orch.State()), Message: "listening"}
}

func (d *daemon) stopSession() ipc.Response {
	if err := d.orch.Stop(); err != nil {
		d.logger.Error("stop session failed", "error", err.Error())
		return ipc.Response{State: string(d.orch.State()), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(d.orch.State()), Message: "stopped"}
}

func (d *daemon) statsSnapshot() ipc.Response {
	payload := struct {
		recognition.Stats
		Streaming recognition.PerfStats `json:"streaming"`
	}{d.orch.Stats(), d.orch.PerfStats()}

	data, err := json.Marshal(payload)
	if err != nil {
		return ipc.Response{Error: fmt.Sprintf("encode stats: %v", err)}
	}
	return ipc.Response{OK: true, State: string(d.orch.State()), Stats: data}
}
