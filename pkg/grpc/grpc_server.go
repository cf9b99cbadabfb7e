package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/iot"
)

// ServiceName is the health service name reported for the events service.
const ServiceName = "device.events.v1.EventService"

type IOTServer struct {
	Iot    *iot.IOT
	Health *health.Server
}

func NewIOTServer(iotCore *iot.IOT) *IOTServer {
	return &IOTServer{
		Iot:    iotCore,
		Health: health.NewServer(),
	}
}

func logger() *zap.Logger {
	return common.GetLoggerWith(common.LoggerNameGrpcServer)
}

// Register attaches the health service to s and records the current db state.
func (i *IOTServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, i.Health)
	i.UpdateStatus(context.Background())
}

// UpdateStatus pings the db and flips both the overall and the events
// service status accordingly.
func (i *IOTServer) UpdateStatus(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := i.Iot.Db.Ping(ctx); err != nil {
		logger().Warn("Database ping failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	i.Health.SetServingStatus("", status)
	i.Health.SetServingStatus(ServiceName, status)
	return status
}

// WatchStatus refreshes the health status every interval until ctx is done.
func (i *IOTServer) WatchStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.UpdateStatus(ctx)
		}
	}
}

func (i *IOTServer) Shutdown() {
	i.Health.Shutdown()
}

func (i *IOTServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(CreateLoggingInterceptor()))
	s := grpc.NewServer(opts...)
	i.Register(s)
	return s
}
