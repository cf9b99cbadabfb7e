package geo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/device-events-service/pkg/common"
	"liyu1981.xyz/device-events-service/pkg/models"
	_ "liyu1981.xyz/device-events-service/pkg/testing"
)

func newProvider(t *testing.T, handler func(req processRequest) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req processRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolve(t *testing.T) {
	common.SetTestLoggerNop()

	var got processRequest
	server := newProvider(t, func(req processRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{
			"status":   "ok",
			"balance":  99,
			"lat":      12.9716,
			"lon":      77.5946,
			"accuracy": 1200,
			"address":  "Bengaluru, Karnataka, India",
		}
	})

	client := NewClient(server.URL, "pk.test-token")
	location, err := client.Resolve(context.Background(), models.CellTower{MCC: 404, MNC: 45, LAC: 1234, CID: 5678})
	require.NoError(t, err)

	assert.Equal(t, 12.9716, location.Latitude)
	assert.Equal(t, 77.5946, location.Longitude)
	assert.Equal(t, 1200.0, location.Accuracy)
	assert.Equal(t, "Bengaluru, Karnataka, India", location.Address)

	assert.Equal(t, "pk.test-token", got.Token)
	assert.Equal(t, "gsm", got.Radio)
	assert.Equal(t, int64(404), got.MCC)
	assert.Equal(t, int64(45), got.MNC)
	assert.Equal(t, []cell{{LAC: 1234, CID: 5678}}, got.Cells)
	assert.Equal(t, 1, got.Address)
}

func TestResolve_ProviderError(t *testing.T) {
	common.SetTestLoggerNop()

	server := newProvider(t, func(req processRequest) (int, any) {
		return http.StatusOK, map[string]any{"status": "error", "message": "Invalid token"}
	})

	_, err := NewClient(server.URL, "bad").Resolve(context.Background(), models.CellTower{MCC: 1, MNC: 1, LAC: 1, CID: 1})
	require.Error(t, err)

	var rerr *ResolveError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "error", rerr.Status)
	assert.Equal(t, "Invalid token", rerr.Message)
	assert.Nil(t, rerr.Err)
}

func TestResolve_TransportErrors(t *testing.T) {
	common.SetTestLoggerNop()

	{
		// not json
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "t").Resolve(context.Background(), models.CellTower{})
		var rerr *ResolveError
		require.True(t, errors.As(err, &rerr))
		assert.NotNil(t, rerr.Err)
	}

	{
		// unreachable
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewClient(url, "t").Resolve(context.Background(), models.CellTower{})
		var rerr *ResolveError
		require.True(t, errors.As(err, &rerr))
		assert.NotNil(t, rerr.Err)
	}

	{
		// cancelled by caller
		server := newProvider(t, func(req processRequest) (int, any) {
			return http.StatusOK, map[string]any{"status": "ok"}
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewClient(server.URL, "t").Resolve(ctx, models.CellTower{})
		assert.ErrorIs(t, err, context.Canceled)
	}
}
