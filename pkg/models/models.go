package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type EventType int

const (
	EventTypeLocation EventType = 1

	AlertTypeGenerated string = "generated"
)

type Event struct {
	RowID      uint              `gorm:"primaryKey" json:"-"`
	EventID    string            `gorm:"index" json:"ID"`
	DeviceID   string            `gorm:"index:idx_events_device_type,priority:1" json:"DEVICE_ID"`
	DeviceNum  *int64            `gorm:"index" json:"-"`
	TS         int64             `gorm:"index" json:"TS"`
	Type       EventType         `gorm:"index:idx_events_device_type,priority:2" json:"Type"`
	EventName  string            `gorm:"index" json:"Event_Name"`
	Details    datatypes.JSONMap `json:"Details"`
	AlertType  string            `json:"AlertType,omitempty"`
	SearchText string            `json:"-"` // lowercased Details.description
	CreatedAt  time.Time         `json:"createdAt"`
}

type Location struct {
	DeviceID    string    `gorm:"primaryKey" json:"DEVICE_ID"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Accuracy    float64   `json:"accuracy"`
	Address     string    `json:"address"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// CellTower is the `Details.cell_info.cell_towers` object of a LOCATION event.
type CellTower struct {
	MCC int64 `json:"mcc"`
	MNC int64 `json:"mnc"`
	LAC int64 `json:"lac"`
	CID int64 `json:"cid"`
}

// UnmarshalJSON accepts each tower field as a JSON integer or an integer string.
func (c *CellTower) UnmarshalJSON(data []byte) error {
	var raw struct {
		MCC FlexInt64 `json:"mcc"`
		MNC FlexInt64 `json:"mnc"`
		LAC FlexInt64 `json:"lac"`
		CID FlexInt64 `json:"cid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = CellTower{
		MCC: int64(raw.MCC),
		MNC: int64(raw.MNC),
		LAC: int64(raw.LAC),
		CID: int64(raw.CID),
	}
	return nil
}

type CellInfo struct {
	CellTowers *CellTower `json:"cell_towers"`
}

type GeoLocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Address   string
}

type EventPage struct {
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Events []Event `json:"events"`
}

// EventInput is an inbound event after transport decoding.
type EventInput struct {
	DeviceID string
	ID       string
	TS       int64
	Type     int
	Details  map[string]any
}

type EventQuery struct {
	Page          int
	Limit         int
	Search        string
	DeviceIDRange string
	Type          *int
	AlertsOnly    bool
}
