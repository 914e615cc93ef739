package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealth exposes readiness through the standard grpc.health.v1 service.
type GRPCHealth struct {
	server    *health.Server
	readiness readinessChecker
	interval  time.Duration
}

// NewGRPCHealth registers the health service on srv.
func NewGRPCHealth(srv *grpc.Server, r readinessChecker) *GRPCHealth {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if r == nil {
		r = ReadyProbe{}
	}
	return &GRPCHealth{server: hs, readiness: r, interval: 5 * time.Second}
}

// Refresh runs the readiness check once and publishes the result for both the
// overall server and the named service.
func (g *GRPCHealth) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := g.readiness.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.server.SetServingStatus("", status)
	g.server.SetServingStatus(serviceName, status)
}

// Watch refreshes readiness until ctx ends, then marks the server as shutting down.
func (g *GRPCHealth) Watch(ctx context.Context) {
	g.Refresh(ctx)
	t := time.NewTicker(g.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			g.server.Shutdown()
			return
		case <-t.C:
			g.Refresh(ctx)
		}
	}
}
