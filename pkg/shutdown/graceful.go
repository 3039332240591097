package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/CodeMonkeyCybersecurity/anew/internal/logger"
)

// Handler runs cleanup functions exactly once, either when the run finishes or
// when the process is interrupted.
type Handler struct {
	shutdownFuncs []func() error
	mu            sync.Mutex
	done          bool
	logger        *logger.Logger
}

func NewHandler(log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		shutdownFuncs: make([]func() error, 0),
		logger:        log.WithComponent("shutdown"),
	}
}

// RegisterShutdownFunc registers a function to be called during shutdown
func (h *Handler) RegisterShutdownFunc(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownFuncs = append(h.shutdownFuncs, fn)
}

// IgnoreBrokenPipe stops SIGPIPE from killing the process so that a write to
// a closed stdout fails with EPIPE instead.
func IgnoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}

// WaitForSignal runs the shutdown functions and calls exit(130) on SIGINT or
// SIGTERM. It returns when ctx is done without shutting anything down.
func (h *Handler) WaitForSignal(ctx context.Context, exit func(code int)) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		h.logger.Infow("Received signal, shutting down", "signal", sig.String())
		if err := h.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "anew: %v\n", err)
		}
		exit(130)
	case <-ctx.Done():
	}
}

// Shutdown executes the registered functions in reverse order and returns the
// first error, which the caller reports. Later calls are no-ops.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return nil
	}
	h.done = true

	var firstErr error
	for i := len(h.shutdownFuncs) - 1; i >= 0; i-- {
		if err := h.shutdownFuncs[i](); err != nil {
			h.logger.Debugw("Error during shutdown", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ShutdownWithTimeout executes shutdown with a timeout
func (h *Handler) ShutdownWithTimeout(timeout time.Duration) error {
	done := make(chan error, 1)

	go func() {
		done <- h.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
