// Package health serves the standard gRPC health protocol for orchestrators
// and keeps it in step with the storefront's dependencies.
package health

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the service key reported alongside the overall "" status.
const ServiceName = "storefront"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(gs)

	s := &Server{grpc: gs, health: hs, log: log.With("component", "health")}
	s.SetServing(false)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch pings the dependencies every interval and reports SERVING only while
// all of them answer.
func (s *Server) Watch(ctx context.Context, interval time.Duration, deps map[string]Pinger) {
	check := func() {
		healthy := true
		for name, p := range deps {
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := p.Ping(pctx)
			cancel()
			if err != nil {
				healthy = false
				s.log.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
			}
		}
		s.SetServing(healthy)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}

// Stop flips to NOT_SERVING so callers drain, then stops gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
