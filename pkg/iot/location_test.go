package iot

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zapcore"

	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
	_ "liyu1981.xyz/device-events-service/pkg/testing"
)

func countLocations(t *testing.T, iotObj *IOT, deviceID string) int64 {
	t.Helper()
	var count int64
	if err := iotObj.Db.Conn.Model(&models.Location{}).Where("device_id = ?", deviceID).Count(&count).Error; err != nil {
		t.Fatalf("count locations: %v", err)
	}
	return count
}

func TestSaveEvent_LocationUpsert(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, iotObj, _, mockGeolocator := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	deviceID := uuid.NewString()
	ctx := context.Background()

	gomock.InOrder(
		mockGeolocator.EXPECT().
			Resolve(gomock.Any(), gomock.Eq(models.CellTower{MCC: 404, MNC: 45, LAC: 1234, CID: 5678})).
			Return(&models.GeoLocation{Latitude: 12.97, Longitude: 77.59, Accuracy: 500, Address: "Bengaluru"}, nil).
			Times(1),
		mockGeolocator.EXPECT().
			Resolve(gomock.Any(), gomock.Eq(models.CellTower{MCC: 404, MNC: 45, LAC: 4321, CID: 8765})).
			Return(&models.GeoLocation{Latitude: 19.07, Longitude: 72.87, Accuracy: 800, Address: "Mumbai"}, nil).
			Times(1),
	)

	_, err := iotObj.Event.SaveEvent(ctx, &models.EventInput{
		DeviceID: deviceID,
		ID:       "loc-1",
		TS:       1700000000,
		Type:     1,
		Details:  cellInfoDetails(404, 45, 1234, 5678),
	})
	require.NoError(t, err)

	location, err := iotObj.Location.GetLocation(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, 12.97, location.Latitude)
	assert.Equal(t, "Bengaluru", location.Address)
	firstUpdate := location.LastUpdated

	_, err = iotObj.Event.SaveEvent(ctx, &models.EventInput{
		DeviceID: deviceID,
		ID:       "loc-2",
		TS:       1700000100,
		Type:     1,
		Details:  cellInfoDetails(404, 45, 4321, 8765),
	})
	require.NoError(t, err)

	location, err = iotObj.Location.GetLocation(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, 19.07, location.Latitude)
	assert.Equal(t, 72.87, location.Longitude)
	assert.Equal(t, 800.0, location.Accuracy)
	assert.Equal(t, "Mumbai", location.Address)
	assert.False(t, location.LastUpdated.Before(firstUpdate))

	assert.Equal(t, int64(1), countLocations(t, iotObj, deviceID))
	assert.Equal(t, int64(2), countEvents(t, iotObj, deviceID))
}

func TestSaveEvent_LocationProviderFailure(t *testing.T) {
	var buf = &bytes.Buffer{}
	common.SetTestCaptureLogger(buf, zapcore.InfoLevel)

	ctrl, iotObj, _, mockGeolocator := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	deviceID := uuid.NewString()

	mockGeolocator.EXPECT().
		Resolve(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("Geolocation service error")).
		Times(1)

	event, err := iotObj.Event.SaveEvent(context.Background(), &models.EventInput{
		DeviceID: deviceID,
		ID:       "loc-1",
		TS:       1700000000,
		Type:     1,
		Details:  cellInfoDetails(404, 45, 1234, 5678),
	})
	require.NoError(t, err)
	assert.Equal(t, "LOCATION", event.EventName)

	assert.Equal(t, int64(1), countEvents(t, iotObj, deviceID))
	assert.Equal(t, int64(0), countLocations(t, iotObj, deviceID))

	_, err = iotObj.Location.GetLocation(context.Background(), deviceID)
	assert.ErrorIs(t, err, ErrLocationNotFound)

	found := false
	for _, log := range ParseLogs(buf) {
		lobj := log.(map[string]any)
		if lobj["category"] == "location" &&
			lobj["level"] == "warn" &&
			lobj["msg"] == "Error processing location data" &&
			lobj["device_id"] == deviceID {
			found = true
		}
	}
	assert.True(t, found, "log not found")
}

func TestSaveEvent_LocationSkipped(t *testing.T) {
	common.SetTestLoggerNop()

	// strict mock: any Resolve call fails the test
	ctrl, iotObj, _, _ := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	ctx := context.Background()

	inputs := []models.EventInput{
		// location without cell info
		{DeviceID: uuid.NewString(), ID: "a", TS: 1700000000, Type: 1},
		// cell info without towers
		{DeviceID: uuid.NewString(), ID: "b", TS: 1700000000, Type: 1, Details: map[string]any{"cell_info": map[string]any{"rssi": -70}}},
		// malformed towers
		{DeviceID: uuid.NewString(), ID: "c", TS: 1700000000, Type: 1, Details: map[string]any{"cell_info": map[string]any{"cell_towers": "none"}}},
		// cell info on a non location type
		{DeviceID: uuid.NewString(), ID: "d", TS: 1700000000, Type: 20, Details: cellInfoDetails(1, 2, 3, 4)},
	}

	for _, input := range inputs {
		_, err := iotObj.Event.SaveEvent(ctx, &input)
		require.NoError(t, err, input.ID)
		assert.Equal(t, int64(1), countEvents(t, iotObj, input.DeviceID), input.ID)
		assert.Equal(t, int64(0), countLocations(t, iotObj, input.DeviceID), input.ID)
	}
}

func TestSaveEvent_LocationWithoutGeolocator(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, iotObj, _, _ := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	iotObj.Geolocator = nil
	deviceID := uuid.NewString()

	_, err := iotObj.Event.SaveEvent(context.Background(), &models.EventInput{
		DeviceID: deviceID,
		ID:       "loc-1",
		TS:       1700000000,
		Type:     1,
		Details:  cellInfoDetails(404, 45, 1234, 5678),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), countLocations(t, iotObj, deviceID))

	res := iotObj.updateLocationFromCellInfo(context.Background(), deviceID, cellInfoDetails(1, 2, 3, 4)["cell_info"])
	assert.ErrorIs(t, res.err, ErrGeolocatorUnavailable)
}

func TestUpsertLocation_CanonicalLookup(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, iotObj, _, _ := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	deviceID := deviceKey(uniqueDeviceBase())

	_, err := iotObj.Location.UpsertLocation(context.Background(), deviceID, &models.GeoLocation{
		Latitude: 1.5, Longitude: 2.5, Accuracy: 10, Address: "somewhere",
	})
	require.NoError(t, err)

	location, err := iotObj.Location.GetLocation(context.Background(), "00"+deviceID)
	require.NoError(t, err)
	assert.Equal(t, deviceID, location.DeviceID)
	assert.Equal(t, "somewhere", location.Address)
}

func TestSaveEvent_LocationStringTowerFields(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, iotObj, _, mockGeolocator := GetMockIOTWithMemorySqliteDialector(t)
	defer ctrl.Finish()

	deviceID := uuid.NewString()
	ctx := context.Background()

	mockGeolocator.EXPECT().
		Resolve(gomock.Any(), gomock.Eq(models.CellTower{MCC: 404, MNC: 45, LAC: 1, CID: 2})).
		Return(&models.GeoLocation{Latitude: 28.61, Longitude: 77.2, Accuracy: 1200, Address: "New Delhi"}, nil).
		Times(1)

	_, err := iotObj.Event.SaveEvent(ctx, &models.EventInput{
		DeviceID: deviceID,
		ID:       "loc-str",
		TS:       1700000000,
		Type:     1,
		Details: map[string]any{
			"cell_info": map[string]any{
				"cell_towers": map[string]any{"mcc": "404", "mnc": "45", "lac": "1", "cid": 2},
			},
		},
	})
	require.NoError(t, err)

	location, err := iotObj.Location.GetLocation(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, 28.61, location.Latitude)
	assert.Equal(t, "New Delhi", location.Address)
}
