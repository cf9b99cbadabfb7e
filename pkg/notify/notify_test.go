package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gorm.io/datatypes"

	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
	_ "liyu1981.xyz/device-events-service/pkg/testing"
)

func sosEvent(deviceID string) *models.Event {
	return &models.Event{
		EventID:   "sos-1",
		DeviceID:  deviceID,
		TS:        1700000000,
		Type:      6,
		EventName: "SOS_ALARM",
		AlertType: models.AlertTypeGenerated,
		Details:   datatypes.JSONMap{"description": "button pressed"},
	}
}

func TestLogNotifier(t *testing.T) {
	var buf = &bytes.Buffer{}
	common.SetTestCaptureLogger(buf, zapcore.InfoLevel)

	deviceID := uuid.NewString()
	require.NoError(t, LogNotifier{}.NotifyAlert(context.Background(), sosEvent(deviceID)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "notify", entry["category"])
	assert.Equal(t, "Device alert", entry["msg"])

	alert := entry["alert"].(map[string]any)
	assert.Equal(t, deviceID, alert["DEVICE_ID"])
	assert.Equal(t, "SOS_ALARM", alert["Event_Name"])
	assert.Equal(t, "generated", alert["AlertType"])
}

func TestNewAlertMessage(t *testing.T) {
	msg := NewAlertMessage(sosEvent("42"))

	assert.Equal(t, "sos-1", msg.ID)
	assert.Equal(t, "42", msg.DeviceID)
	assert.Equal(t, 6, msg.Type)
	assert.Equal(t, "button pressed", msg.Details["description"])
	assert.NotZero(t, msg.TriggeredAt)
}

func TestRedisNotifier(t *testing.T) {
	if os.Getenv(common.EnvKeyRunIntegrationTests) != "true" {
		t.Skip("Skipping integration test: RUN_INTEGRATION_TESTS environment variable not set")
	}

	common.SetTestLoggerNop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := common.LoadConfig()
	cfg.RedisAlertChannel = "test:alerts:" + uuid.NewString()

	notifier, err := NewRedisNotifier(ctx, cfg)
	require.NoError(t, err)
	defer notifier.Close()

	sub := notifier.Client().Subscribe(ctx, notifier.Channel())
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	deviceID := uuid.NewString()
	require.NoError(t, notifier.NotifyAlert(ctx, sosEvent(deviceID)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got AlertMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, deviceID, got.DeviceID)
	assert.Equal(t, "SOS_ALARM", got.EventName)
}

func TestRedisNotifierUnreachable(t *testing.T) {
	common.SetTestLoggerNop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := common.LoadConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := NewRedisNotifier(ctx, cfg)
	assert.Error(t, err)
}
