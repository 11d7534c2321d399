package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the service name reported by the health endpoint next to the overall "" status.
const RelayService = "chat_relay.Relay"

type HealthServer struct {
	*health.Server
	log *slog.Logger
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	h := &HealthServer{Server: health.NewServer(), log: log}
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(RelayService, healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

// Drain reports NOT_SERVING everywhere, watchers are notified before the server stops.
func (h *HealthServer) Drain() {
	h.log.Info("Health set to not serving")
	h.Shutdown()
}
