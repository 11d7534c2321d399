package workers

import (
	"chat-relay/infrastructure/grpc/server"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
)

// GrpcServerWorker serves the health service until the context ends.
// A fresh grpc.Server is built on every run so the supervisor can restart it.
type GrpcServerWorker struct {
	log     *slog.Logger
	address string
	health  *server.HealthServer
}

func NewGrpcServerWorker(log *slog.Logger, address string, health *server.HealthServer) *GrpcServerWorker {
	return &GrpcServerWorker{log: log, address: address, health: health}
}

func (w *GrpcServerWorker) Name() string {
	return "grpc"
}

func (w *GrpcServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}

	s := grpc.NewServer()
	w.health.Register(s)
	w.health.Resume()

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", listener.Addr().String())
		errChan <- s.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		w.health.Drain()
		s.GracefulStop()
		return nil
	case err = <-errChan:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("gRPC server error: %w", err)
	}
}
