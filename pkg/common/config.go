package common

import (
	"os"
	"strconv"
	"strings"
)

const (
	DefaultHttpHostPort      = ":1080"
	DefaultGeoAPIURL         = "https://unwiredlabs.com/v2/process.php"
	DefaultRedisAlertChannel = "device:alerts"

	NotifierTypeLog   = "log"
	NotifierTypeRedis = "redis"
)

type Config struct {
	DBType string
	DBPath string

	HttpHostPort string
	GrpcHostPort string

	// per-device ingest limiter, burst 0 disables it
	DefaultRate  float64
	DefaultBurst int

	GeoAPIURL   string
	GeoAPIToken string

	NotifierType      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisAlertChannel string
}

func LoadConfig() *Config {
	return &Config{
		DBType:            getEnv(EnvKeyIOTDBType, "file"),
		DBPath:            getEnv(EnvKeyIOTDbPath, "events.db"),
		HttpHostPort:      getEnv(EnvKeyIOTHttpHostPort, DefaultHttpHostPort),
		GrpcHostPort:      getEnv(EnvKeyIOTGrpcHostPort, ""),
		DefaultRate:       getEnvFloat(EnvKeyIOTDefaultRate, 0),
		DefaultBurst:      getEnvInt(EnvKeyIOTDefaultBurst, 0),
		GeoAPIURL:         getEnv(EnvKeyGeoAPIURL, DefaultGeoAPIURL),
		GeoAPIToken:       getEnv(EnvKeyGeoAPIToken, ""),
		NotifierType:      strings.ToLower(getEnv(EnvKeyNotifierType, NotifierTypeLog)),
		RedisAddr:         getEnv(EnvKeyRedisAddr, "localhost:6379"),
		RedisPassword:     getEnv(EnvKeyRedisPassword, ""),
		RedisDB:           getEnvInt(EnvKeyRedisDB, 0),
		RedisAlertChannel: getEnv(EnvKeyRedisAlertChannel, DefaultRedisAlertChannel),
	}
}

func (c *Config) LimiterEnabled() bool {
	return c.DefaultBurst > 0
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
