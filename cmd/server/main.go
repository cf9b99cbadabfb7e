package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/db"
	"liyu1981.xyz/device-events-service/pkg/geo"
	iotGrpc "liyu1981.xyz/device-events-service/pkg/grpc"
	iotHttp "liyu1981.xyz/device-events-service/pkg/http"
	"liyu1981.xyz/device-events-service/pkg/iot"
	"liyu1981.xyz/device-events-service/pkg/notify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || common.IsDevelopment() {
			log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
		}
	}

	cfg := common.LoadConfig()
	logger := common.GetLogger()

	var dbInstance *db.DB
	switch cfg.DBType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector(cfg.DBPath))
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown IOT_DB_TYPE: " + cfg.DBType)
	}

	ctx := context.Background()

	iotCore := (&iot.IOT{
		Db: *dbInstance,
	}).WithDefaultServices()

	switch cfg.NotifierType {
	case common.NotifierTypeRedis:
		notifier, err := notify.NewRedisNotifier(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to connect redis notifier: %v", err)
		}
		defer notifier.Close()
		iotCore.WithServices(iot.ServiceOpts{Notifier: notifier})
		logger.Info("Alert notifier created",
			zap.String("type", cfg.NotifierType),
			zap.String("redis_addr", cfg.RedisAddr),
			zap.String("channel", notifier.Channel()))
	case common.NotifierTypeLog:
		iotCore.WithServices(iot.ServiceOpts{Notifier: notify.LogNotifier{}})
		logger.Info("Alert notifier created", zap.String("type", cfg.NotifierType))
	default:
		log.Fatal("Unknown NOTIFIER_TYPE: " + cfg.NotifierType)
	}

	if cfg.GeoAPIToken != "" {
		iotCore.WithServices(iot.ServiceOpts{
			Geolocator: geo.NewClient(cfg.GeoAPIURL, cfg.GeoAPIToken),
		})
		logger.Info("Geolocator created", zap.String("url", cfg.GeoAPIURL))
	} else {
		logger.Warn("GEO_API_TOKEN not set, location events will not be resolved")
	}

	var limiterStore *iot.RateLimiterStore
	if cfg.LimiterEnabled() {
		limiterStore = iot.NewRateLimiterStore(rate.Limit(cfg.DefaultRate), cfg.DefaultBurst)
	}

	if cfg.GrpcHostPort != "" {
		logger.Info("Starting gRPC server on port " + cfg.GrpcHostPort)
		go func() {
			iotGrpcServer := iotGrpc.NewIOTServer(iotCore)
			s := iotGrpcServer.NewServer()
			go iotGrpcServer.WatchStatus(ctx, 30*time.Second)

			listener, err := net.Listen("tcp", cfg.GrpcHostPort)
			if err != nil {
				log.Fatalf("failed to listen: %v", err)
			}

			logger.Info("start gRPC server on " + cfg.GrpcHostPort)
			if err := s.Serve(listener); err != nil {
				log.Fatalf("grpc server failed to serve: %v", err)
			}
		}()
	}

	rs := &iotHttp.RestfulServer{
		Server:           gin.Default(),
		Iot:              iotCore,
		RateLimiterStore: limiterStore,
	}
	rs.Setup()

	logger.Info("http server created with:",
		zap.Bool("limiter_enabled", cfg.LimiterEnabled()),
		zap.Float64("default_rate", cfg.DefaultRate),
		zap.Int("default_burst", cfg.DefaultBurst))

	logger.Info("Starting HTTP server on: " + cfg.HttpHostPort)
	if err := rs.Server.Run(cfg.HttpHostPort); err != nil {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
