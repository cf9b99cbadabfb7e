package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
)

// AlertMessage is the payload delivered for an alert-worthy event.
type AlertMessage struct {
	ID          string         `json:"ID"`
	DeviceID    string         `json:"DEVICE_ID"`
	TS          int64          `json:"TS"`
	Type        int            `json:"Type"`
	EventName   string         `json:"Event_Name"`
	AlertType   string         `json:"AlertType"`
	Details     map[string]any `json:"Details"`
	TriggeredAt int64          `json:"triggered_at"`
}

func NewAlertMessage(event *models.Event) AlertMessage {
	return AlertMessage{
		ID:          event.EventID,
		DeviceID:    event.DeviceID,
		TS:          event.TS,
		Type:        int(event.Type),
		EventName:   event.EventName,
		AlertType:   event.AlertType,
		Details:     event.Details,
		TriggeredAt: time.Now().Unix(),
	}
}

// LogNotifier only records alerts in the service log.
type LogNotifier struct{}

func (LogNotifier) NotifyAlert(ctx context.Context, event *models.Event) error {
	common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTNotify),
	).Warn("Device alert", zap.Reflect("alert", NewAlertMessage(event)))
	return nil
}

// RedisNotifier publishes alerts as JSON on a redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(ctx context.Context, cfg *common.Config) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: cfg.RedisAlertChannel}, nil
}

func (r *RedisNotifier) Channel() string {
	return r.channel
}

func (r *RedisNotifier) Client() *redis.Client {
	return r.client
}

func (r *RedisNotifier) Close() error {
	return r.client.Close()
}

func (r *RedisNotifier) NotifyAlert(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(NewAlertMessage(event))
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert to %s: %w", r.channel, err)
	}
	return nil
}
