package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health is a client of the backend's gRPC health service.
type Health struct {
	conn *grpc.ClientConn
	svc  healthpb.HealthClient
}

// DialHealth connects to target with insecure transport unless opts say otherwise.
func DialHealth(target string, opts ...grpc.DialOption) (*Health, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Health{conn: conn, svc: healthpb.NewHealthClient(conn)}, nil
}

func (h *Health) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// Check returns the serving status of service ("" for the whole server).
func (h *Health) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.svc.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
