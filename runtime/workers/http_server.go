package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// HTTPServerWorker serves one handler (websocket endpoint, debug pages) until the context ends.
type HTTPServerWorker struct {
	log     *slog.Logger
	name    string
	address string
	handler http.Handler
	ready   chan net.Addr
}

func NewHTTPServerWorker(log *slog.Logger, name, address string, handler http.Handler) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, name: name, address: address, handler: handler, ready: make(chan net.Addr, 1)}
}

// Ready yields the bound address once the listener is open.
func (w *HTTPServerWorker) Ready() <-chan net.Addr {
	return w.ready
}

func (w *HTTPServerWorker) Name() string {
	return w.name
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("%s failed to listen on %s: %w", w.name, w.address, err)
	}
	select {
	case w.ready <- listener.Addr():
	default:
	}

	srv := &http.Server{Handler: w.handler, ReadHeaderTimeout: 10 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "name", w.name, "address", listener.Addr().String())
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = srv.Shutdown(shutdownCtx); err != nil {
			w.log.Warn("HTTP server shutdown failed", "name", w.name, "error", err)
		}
		return nil
	case err = <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server error: %w", w.name, err)
	}
}
