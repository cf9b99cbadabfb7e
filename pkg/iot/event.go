package iot

import (
	"context"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
)

const invalidEventMessage = "Invalid apm/device message format"

// Validate treats zero values as absent, so a zero TS or Type is rejected
// while negative ones pass and classify as unknown.
var eventInputSchema = z.Struct(z.Shape{
	"DeviceID": z.String().Min(1).Required(),
	"ID":       z.String().Min(1).Required(),
	"TS":       z.Int64().Required(),
	"Type":     z.Int().Required(),
})

func searchText(details datatypes.JSONMap) string {
	if description, ok := details["description"].(string); ok {
		return strings.ToLower(description)
	}
	return ""
}

func (i *IOT) saveEvent(ctx context.Context, input *models.EventInput) (*models.Event, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTEvent),
	)

	in := *input
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	in.ID = strings.TrimSpace(in.ID)
	if issues := eventInputSchema.Validate(&in); issues != nil {
		verr := &ValidationError{Message: invalidEventMessage, Issues: issues}
		logger.Warn("Rejected event", zap.Strings("fields", verr.Fields()))
		return nil, verr
	}

	deviceID, deviceNum := CanonicalDeviceID(in.DeviceID)
	eventType := models.EventType(in.Type)
	eventName, isAlert := Classify(eventType)

	details := datatypes.JSONMap(in.Details)
	if details == nil {
		details = datatypes.JSONMap{}
	}

	event := models.Event{
		EventID:    in.ID,
		DeviceID:   deviceID,
		DeviceNum:  deviceNum,
		TS:         in.TS,
		Type:       eventType,
		EventName:  eventName,
		Details:    details,
		SearchText: searchText(details),
	}
	if isAlert {
		event.AlertType = models.AlertTypeGenerated
	}

	logger.Info("Received event for device", zap.Reflect("event", event))

	if err := i.Db.Conn.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("save event %s of device %s: %w", event.EventID, event.DeviceID, err)
	}

	logger.Info("Saved event for device", zap.Reflect("event", event))

	if isAlert {
		i.dispatchAlert(ctx, event)
	}

	if eventType == models.EventTypeLocation {
		if cellInfo, ok := details["cell_info"]; ok && cellInfo != nil {
			i.updateLocationFromCellInfo(ctx, event.DeviceID, cellInfo).log()
		}
	}

	return &event, nil
}

// dispatchAlert hands the event to the notifier in the background. The
// notification outlives the request context and its outcome is only logged.
func (i *IOT) dispatchAlert(ctx context.Context, event models.Event) {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldIOTCategory, common.LoggerCategoryIOTNotify),
	)

	notifier := i.Notifier
	if notifier == nil {
		logger.Warn("Notifier not available, alert not sent",
			zap.String("device_id", event.DeviceID), zap.String("event_id", event.EventID))
		return
	}

	ctx = context.WithoutCancel(ctx)
	i.notifications.Add(1)
	go func() {
		defer i.notifications.Done()
		notifyAlert(ctx, logger, notifier, &event)
	}()
}

func notifyAlert(ctx context.Context, logger *zap.Logger, notifier INotifier, event *models.Event) {
	if err := notifier.NotifyAlert(ctx, event); err != nil {
		logger.Warn("Alert notification failed",
			zap.String("device_id", event.DeviceID), zap.String("event_id", event.EventID), zap.Error(err))
		return
	}

	logger.Info("Alert notification sent",
		zap.String("device_id", event.DeviceID), zap.String("event_id", event.EventID))
}

type IEventImpl struct {
	iot *IOT
}

func (ie *IEventImpl) SaveEvent(ctx context.Context, input *models.EventInput) (*models.Event, error) {
	return ie.iot.saveEvent(ctx, input)
}

func (i *IOT) GetIEvent() IEvent {
	return &IEventImpl{iot: i}
}
