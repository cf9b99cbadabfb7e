package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

func CreateLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()

		reqSize := 0
		if m, ok := req.(proto.Message); ok {
			reqSize = proto.Size(m)
		}

		resp, err := handler(ctx, req)

		logger().Info("Handled gRPC request",
			zap.String("method", info.FullMethod),
			zap.Int("request_size", reqSize),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		)

		return resp, err
	}
}
