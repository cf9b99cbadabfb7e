package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
)

const (
	RadioGSM  = "gsm"
	StatusOK  = "ok"
	addressOn = 1
)

type cell struct {
	LAC int64 `json:"lac"`
	CID int64 `json:"cid"`
}

type processRequest struct {
	Token   string `json:"token"`
	Radio   string `json:"radio"`
	MCC     int64  `json:"mcc"`
	MNC     int64  `json:"mnc"`
	Cells   []cell `json:"cells"`
	Address int    `json:"address"`
}

type processResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
	Address  string  `json:"address"`
}

// ResolveError reports a provider-side failure (non "ok" status) or a
// transport/decoding failure (Err set).
type ResolveError struct {
	Status  string
	Message string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocation request failed: %v", e.Err)
	}
	return fmt.Sprintf("geolocation service error: status=%q message=%q", e.Status, e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Client resolves a single GSM cell through the unwiredlabs process API.
type Client struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func NewClient(url, token string) *Client {
	return &Client{
		URL:        url,
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

func (c *Client) Resolve(ctx context.Context, tower models.CellTower) (*models.GeoLocation, error) {
	logger := common.GetLoggerWith(common.LoggerNameGeo)

	body, err := json.Marshal(processRequest{
		Token:   c.Token,
		Radio:   RadioGSM,
		MCC:     tower.MCC,
		MNC:     tower.MNC,
		Cells:   []cell{{LAC: tower.LAC, CID: tower.CID}},
		Address: addressOn,
	})
	if err != nil {
		return nil, &ResolveError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &ResolveError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ResolveError{Err: err}
	}
	defer resp.Body.Close()

	var out processResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ResolveError{Err: fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)}
	}

	if out.Status != StatusOK {
		logger.Warn("Geolocation provider rejected cell",
			zap.Reflect("cell", tower), zap.String("status", out.Status), zap.String("message", out.Message))
		return nil, &ResolveError{Status: out.Status, Message: out.Message}
	}

	logger.Debug("Resolved cell", zap.Reflect("cell", tower), zap.Float64("lat", out.Lat), zap.Float64("lon", out.Lon))

	return &models.GeoLocation{
		Latitude:  out.Lat,
		Longitude: out.Lon,
		Accuracy:  out.Accuracy,
		Address:   out.Address,
	}, nil
}
