package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/iot"
	"liyu1981.xyz/device-events-service/pkg/models"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
)

const (
	msgInvalidEvent   = "Invalid apm/device message format"
	msgEventSaved     = "Event data saved successfully."
	msgInternalError  = "Internal Server Error"
	msgDeviceRequired = "Device ID is required"
	msgNoEvents       = "No events found for this device ID"
	msgNoLocation     = "No location found for this device ID"
	msgTooManyRequest = "Too many requests for this device"
	msgNoLimiter      = "Rate limiter is disabled, no effect"
)

// EventRequest is the device payload. DEVICE_ID and ID may be sent as JSON
// strings or numbers, TS and Type as integers or integer strings.
type EventRequest struct {
	DeviceID models.FlexString `json:"DEVICE_ID"`
	ID       models.FlexString `json:"ID"`
	TS       models.FlexString `json:"TS"`
	Type     models.FlexString `json:"Type"`
	Details  map[string]any    `json:"Details"`
}

func parseIntField(name string, v models.FlexString) (int64, error) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return 0, &iot.ValidationError{Message: msgInvalidEvent + ": " + name + " must be an integer"}
}

func (r *EventRequest) toInput() (*models.EventInput, error) {
	ts, err := parseIntField("TS", r.TS)
	if err != nil {
		return nil, err
	}
	eventType, err := parseIntField("Type", r.Type)
	if err != nil {
		return nil, err
	}
	if eventType > math.MaxInt32 || eventType < math.MinInt32 {
		return nil, &iot.ValidationError{Message: msgInvalidEvent + ": Type out of range"}
	}

	return &models.EventInput{
		DeviceID: r.DeviceID.String(),
		ID:       r.ID.String(),
		TS:       ts,
		Type:     int(eventType),
		Details:  r.Details,
	}, nil
}

func logger() *zap.Logger {
	return common.GetLoggerWith(common.LoggerNameRestfulServer)
}

func (rs *RestfulServer) PostEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidEvent, "error": err.Error()})
		return
	}

	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if !rs.CheckDeviceLimiter(input.DeviceID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"message": msgTooManyRequest})
		return
	}

	if _, err := rs.Iot.Event.SaveEvent(c.Request.Context(), input); err != nil {
		var verr *iot.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"message": verr.Error(), "error": verr.Issues})
			return
		}
		logger().Error("Error saving event data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msgEventSaved})
}

type ListEventsRequest struct {
	Page          int    `form:"page,default=1"`
	Limit         int    `form:"limit,default=10"`
	Search        string `form:"search"`
	DeviceIDRange string `form:"deviceIdRange"`
	Type          string `form:"type"`
}

var listEventsRequestSchema = z.Struct(z.Shape{
	"Page":  z.Int().GTE(1).Required(),
	"Limit": z.Int().GTE(1).Required(),
})

func (r *ListEventsRequest) toQuery() (*models.EventQuery, error) {
	if issues := listEventsRequestSchema.Validate(r); issues != nil {
		return nil, &iot.ValidationError{Message: "page and limit must be positive integers", Issues: issues}
	}

	query := &models.EventQuery{
		Page:          r.Page,
		Limit:         r.Limit,
		Search:        r.Search,
		DeviceIDRange: strings.TrimSpace(r.DeviceIDRange),
	}

	if t := strings.TrimSpace(r.Type); t != "" {
		eventType, err := strconv.Atoi(t)
		if err != nil {
			return nil, &iot.ValidationError{Message: "type must be an integer"}
		}
		query.Type = &eventType
	}

	return query, nil
}

func (rs *RestfulServer) listEvents(c *gin.Context, list func(*models.EventQuery) (*models.EventPage, error)) {
	var req ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	query, err := req.toQuery()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	page, err := list(query)
	if err != nil {
		var verr *iot.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"message": verr.Error()})
			return
		}
		logger().Error("Error fetching events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (rs *RestfulServer) GetEvents(c *gin.Context) {
	rs.listEvents(c, func(q *models.EventQuery) (*models.EventPage, error) {
		return rs.Iot.Query.ListEvents(c.Request.Context(), q)
	})
}

func (rs *RestfulServer) GetAlerts(c *gin.Context) {
	rs.listEvents(c, func(q *models.EventQuery) (*models.EventPage, error) {
		return rs.Iot.Query.ListAlerts(c.Request.Context(), q)
	})
}

func (rs *RestfulServer) GetLatestEventsByType(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Query("deviceId"))
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgDeviceRequired})
		return
	}

	events, err := rs.Iot.Query.LatestEventsByType(c.Request.Context(), deviceID)
	if errors.Is(err, iot.ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgNoEvents})
		return
	}
	if err != nil {
		logger().Error("Error fetching latest events by type", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, events)
}

func (rs *RestfulServer) GetLocation(c *gin.Context) {
	deviceID := c.Param("deviceId")

	location, err := rs.Iot.Location.GetLocation(c.Request.Context(), deviceID)
	if errors.Is(err, iot.ErrLocationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgNoLocation})
		return
	}
	if err != nil {
		logger().Error("Error fetching device location", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, location)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	if !rs.SetLimiter(deviceID, req.Rate, req.Burst) {
		c.JSON(http.StatusConflict, gin.H{"message": msgNoLimiter})
		return
	}

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
