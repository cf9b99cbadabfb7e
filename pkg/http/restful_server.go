package http

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"liyu1981.xyz/device-events-service/pkg/iot"
)

type RestfulServer struct {
	Server           *gin.Engine
	Iot              *iot.IOT
	RateLimiterStore *iot.RateLimiterStore
}

func (rs *RestfulServer) CheckDeviceLimiter(deviceID string) bool {
	if rs.RateLimiterStore == nil {
		return true
	}
	return rs.RateLimiterStore.Allow(deviceID)
}

// SetLimiter reports false when the server runs without a limiter store.
func (rs *RestfulServer) SetLimiter(deviceID string, deviceRate float64, deviceBurst int) bool {
	if rs.RateLimiterStore == nil {
		return false
	}
	rs.RateLimiterStore.SetLimiter(deviceID, rate.Limit(deviceRate), deviceBurst)
	return true
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)

	events := rs.Server.Group("/events")
	{
		events.POST("", rs.PostEvent)
		events.GET("", rs.GetEvents)
		events.GET("/alerts", rs.GetAlerts)
		events.GET("/latest", rs.GetLatestEventsByType)
		events.GET("/location/:deviceId", rs.GetLocation)
	}

	devices := rs.Server.Group("/devices/:device_id")
	{
		devices.POST("/limiter", rs.PostLimiter)
	}
}
