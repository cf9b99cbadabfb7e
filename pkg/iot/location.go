package iot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
)

// locationResult is the outcome of the location side flow of an ingestion.
// It is only ever logged; a failure never reaches the ingestion caller.
type locationResult struct {
	deviceID string
	location *models.Location
	err      error
}

func (r locationResult) log() {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTLocation),
	)

	if r.err != nil {
		logger.Warn("Error processing location data", zap.String("device_id", r.deviceID), zap.Error(r.err))
		return
	}
	logger.Info("Updated location for device", zap.Reflect("location", r.location))
}

func decodeCellTower(raw any) (*models.CellTower, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode cell_info: %w", err)
	}

	var info models.CellInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("decode cell_info: %w", err)
	}
	if info.CellTowers == nil {
		return nil, errors.New("cell_info.cell_towers is missing")
	}
	return info.CellTowers, nil
}

func (i *IOT) updateLocationFromCellInfo(ctx context.Context, deviceID string, rawCellInfo any) locationResult {
	res := locationResult{deviceID: deviceID}

	if i.Geolocator == nil {
		res.err = ErrGeolocatorUnavailable
		return res
	}
	if i.Location == nil {
		res.err = ErrLocationUnavailable
		return res
	}

	cell, err := decodeCellTower(rawCellInfo)
	if err != nil {
		res.err = err
		return res
	}

	geo, err := i.Geolocator.Resolve(ctx, *cell)
	if err != nil {
		res.err = fmt.Errorf("resolve cell %+v: %w", *cell, err)
		return res
	}

	res.location, res.err = i.Location.UpsertLocation(ctx, deviceID, geo)
	return res
}

func (i *IOT) upsertLocation(ctx context.Context, deviceID string, geo *models.GeoLocation) (*models.Location, error) {
	location := models.Location{
		DeviceID:    deviceID,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
		Accuracy:    geo.Accuracy,
		Address:     geo.Address,
		LastUpdated: time.Now(),
	}

	err := i.Db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		UpdateAll: true,
	}).Create(&location).Error
	if err != nil {
		return nil, fmt.Errorf("upsert location of device %s: %w", deviceID, err)
	}

	return &location, nil
}

func (i *IOT) getLocation(ctx context.Context, deviceID string) (*models.Location, error) {
	canonical, _ := CanonicalDeviceID(deviceID)

	var location models.Location
	err := i.Db.Conn.WithContext(ctx).First(&location, "device_id = ?", canonical).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

type ILocationImpl struct {
	iot *IOT
}

func (il *ILocationImpl) UpsertLocation(ctx context.Context, deviceID string, geo *models.GeoLocation) (*models.Location, error) {
	return il.iot.upsertLocation(ctx, deviceID, geo)
}

func (il *ILocationImpl) GetLocation(ctx context.Context, deviceID string) (*models.Location, error) {
	return il.iot.getLocation(ctx, deviceID)
}

func (i *IOT) GetILocation() ILocation {
	return &ILocationImpl{iot: i}
}
