package iot

import (
	"context"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

var eventQuerySchema = z.Struct(z.Shape{
	"Page":  z.Int().GTE(1).Required(),
	"Limit": z.Int().GTE(1).Required(),
})

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// newest row of each type for one device, ties on TS go to the later insert
const latestEventsByTypeSQL = `
SELECT e.* FROM events AS e
WHERE e.device_id = ?
AND NOT EXISTS (
	SELECT 1 FROM events AS n
	WHERE n.device_id = e.device_id
	AND n.type = e.type
	AND (n.ts > e.ts OR (n.ts = e.ts AND n.row_id > e.row_id))
)
ORDER BY e.type ASC`

func eventFilters(query *models.EventQuery) (func(*gorm.DB) *gorm.DB, error) {
	var lower, upper int64
	hasRange := query.DeviceIDRange != ""
	if hasRange {
		var err error
		if lower, upper, err = ParseDeviceIDRange(query.DeviceIDRange); err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
	}

	search := strings.ToLower(query.Search)

	return func(tx *gorm.DB) *gorm.DB {
		if query.AlertsOnly {
			tx = tx.Where("alert_type = ?", models.AlertTypeGenerated)
		}
		if hasRange {
			tx = tx.Where("device_num BETWEEN ? AND ?", lower, upper)
		}
		if query.Type != nil {
			tx = tx.Where("type = ?", *query.Type)
		}
		if search != "" {
			pattern := "%" + likeEscaper.Replace(search) + "%"
			tx = tx.Where(
				`(LOWER(event_name) LIKE ? ESCAPE '\' OR search_text LIKE ? ESCAPE '\')`,
				pattern, pattern,
			)
		}
		return tx
	}, nil
}

func (i *IOT) listEvents(ctx context.Context, query *models.EventQuery) (*models.EventPage, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTQuery),
	)

	q := *query
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if issues := eventQuerySchema.Validate(&q); issues != nil {
		return nil, &ValidationError{Message: "invalid pagination", Issues: issues}
	}

	filters, err := eventFilters(&q)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := i.Db.Conn.WithContext(ctx).Model(&models.Event{}).Scopes(filters).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	events := []models.Event{}
	err = i.Db.Conn.WithContext(ctx).
		Scopes(filters).
		Order("ts desc").
		Order("row_id desc").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	logger.Debug("Listed events", zap.Reflect("query", q), zap.Int64("total", total), zap.Int("returned", len(events)))

	return &models.EventPage{
		Total:  total,
		Page:   q.Page,
		Limit:  q.Limit,
		Events: events,
	}, nil
}

func (i *IOT) listAlerts(ctx context.Context, query *models.EventQuery) (*models.EventPage, error) {
	q := *query
	q.AlertsOnly = true
	return i.listEvents(ctx, &q)
}

func (i *IOT) latestEventsByType(ctx context.Context, deviceID string) ([]models.Event, error) {
	canonical, _ := CanonicalDeviceID(deviceID)
	if canonical == "" {
		return nil, &ValidationError{Message: "Device ID is required"}
	}

	events := []models.Event{}
	if err := i.Db.Conn.WithContext(ctx).Raw(latestEventsByTypeSQL, canonical).Scan(&events).Error; err != nil {
		return nil, fmt.Errorf("latest events of device %s: %w", canonical, err)
	}

	if len(events) == 0 {
		exists, err := i.deviceExists(ctx, canonical)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrDeviceNotFound
		}
	}

	return events, nil
}

func (i *IOT) deviceExists(ctx context.Context, deviceID string) (bool, error) {
	var count int64
	err := i.Db.Conn.WithContext(ctx).
		Model(&models.Event{}).
		Where("device_id = ?", deviceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("probe device %s: %w", deviceID, err)
	}
	return count > 0, nil
}

type IQueryImpl struct {
	iot *IOT
}

func (iq *IQueryImpl) ListEvents(ctx context.Context, query *models.EventQuery) (*models.EventPage, error) {
	return iq.iot.listEvents(ctx, query)
}

func (iq *IQueryImpl) ListAlerts(ctx context.Context, query *models.EventQuery) (*models.EventPage, error) {
	return iq.iot.listAlerts(ctx, query)
}

func (iq *IQueryImpl) LatestEventsByType(ctx context.Context, deviceID string) ([]models.Event, error) {
	return iq.iot.latestEventsByType(ctx, deviceID)
}

func (i *IOT) GetIQuery() IQuery {
	return &IQueryImpl{iot: i}
}
