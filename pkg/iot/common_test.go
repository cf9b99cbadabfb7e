package iot

import (
	"bufio"
	"encoding/json"
	"io"
	"math/rand/v2"
	"strconv"
	"testing"

	"go.uber.org/mock/gomock"
	"liyu1981.xyz/device-events-service/pkg/db"
	"liyu1981.xyz/device-events-service/pkg/iot/mocks"
	"liyu1981.xyz/device-events-service/pkg/models"
)

func GetMockIOTWithMemorySqliteDialector(t *testing.T) (
	*gomock.Controller,
	*IOT,
	*mocks.MockINotifier,
	*mocks.MockIGeolocator,
) {
	ctrl := gomock.NewController(t)

	mockNotifier := mocks.NewMockINotifier(ctrl)
	mockGeolocator := mocks.NewMockIGeolocator(ctrl)
	dbInstance := db.GetInstance(db.UseMemorySqliteDialector()) // ensure migrations

	iotInstance := (&IOT{Db: *dbInstance}).WithDefaultServices()
	iotInstance.WithServices(ServiceOpts{
		Notifier:   mockNotifier,
		Geolocator: mockGeolocator,
	})

	return ctrl, iotInstance, mockNotifier, mockGeolocator
}

// uniqueDeviceBase returns a numeric device id block no other test uses, so
// range queries against the shared in-memory db only see this test's rows.
func uniqueDeviceBase() int64 {
	return (rand.Int64N(1_000_000_000) + 1) * 1000
}

func deviceKey(n int64) string {
	return strconv.FormatInt(n, 10)
}

func cellInfoDetails(mcc, mnc, lac, cid int64) map[string]any {
	return map[string]any{
		"cell_info": map[string]any{
			"cell_towers": map[string]any{
				"mcc": mcc,
				"mnc": mnc,
				"lac": lac,
				"cid": cid,
			},
		},
	}
}

func countEvents(t *testing.T, iotObj *IOT, deviceID string) int64 {
	t.Helper()
	var count int64
	if err := iotObj.Db.Conn.Model(&models.Event{}).Where("device_id = ?", deviceID).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
