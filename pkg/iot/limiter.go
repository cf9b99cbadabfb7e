package iot

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"liyu1981.xyz/device-events-service/pkg/common"
)

// RateLimiterStore keeps one ingest limiter per canonical device id.
type RateLimiterStore struct {
	limiters     map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

func NewRateLimiterStore(defaultRate rate.Limit, defaultBurst int) *RateLimiterStore {
	return &RateLimiterStore{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
	}
}

func (s *RateLimiterStore) GetLimiter(deviceID string) *rate.Limiter {
	key, _ := CanonicalDeviceID(deviceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.defaultRate, s.defaultBurst)
		s.limiters[key] = limiter
	}
	return limiter
}

func (s *RateLimiterStore) SetLimiter(deviceID string, deviceRate rate.Limit, deviceBurst int) {
	key, _ := CanonicalDeviceID(deviceID)

	s.mu.Lock()
	s.limiters[key] = rate.NewLimiter(deviceRate, deviceBurst)
	s.mu.Unlock()

	common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTRateLimit),
	).Info("Set limiter for device",
		zap.String("device_id", key), zap.Float64("rate", float64(deviceRate)), zap.Int("burst", deviceBurst))
}

// Allow takes one token from the device's limiter.
func (s *RateLimiterStore) Allow(deviceID string) bool {
	return s.GetLimiter(deviceID).Allow()
}

func (s *RateLimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
