package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/models"
)

const catalogBody = `{
  "data": [
    {"id": 1, "make": "Toyota", "model": "Corolla", "type": "Sedan", "rates": {"hourly": 10, "daily": 99, "weekly": 390}},
    {"id": "suv-7", "make": "Ford", "model": "Explorer", "type": "SUV", "rates": {"hourly": "15.50", "daily": 129}}
  ]
}`

func newTestServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ListVehicles(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, catalogBody, nil)
	client := NewClient(srv.URL, time.Second, zap.NewNop())

	vehicles, err := client.ListVehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	assert.Equal(t, models.VehicleID("1"), vehicles[0].ID)
	assert.Equal(t, "Sedan", vehicles[0].Type)
	require.NotNil(t, vehicles[0].Rates.Weekly)
	assert.Equal(t, "390", vehicles[0].Rates.Weekly.String())

	assert.Equal(t, models.VehicleID("suv-7"), vehicles[1].ID)
	assert.Equal(t, "15.5", vehicles[1].Rates.Hourly.String())
	assert.Nil(t, vehicles[1].Rates.Weekly)
	assert.Equal(t, []string{"weekly"}, vehicles[1].Rates.Missing())
}

func TestClient_NonSuccessStatus(t *testing.T) {
	var hits int32
	srv := newTestServer(t, http.StatusServiceUnavailable, `{"error":"down"}`, &hits)
	client := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := client.ListVehicles(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, "Error: failed to fetch car data: status=503", fetchErr.UserMessage())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "no automatic retry")
}

func TestClient_MalformedBody(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"data": [`, nil)
	client := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := client.ListVehicles(context.Background())
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
	assert.Contains(t, fetchErr.Error(), "decode response")
}

func TestClient_MissingDataField(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"vehicles": []}`, nil)
	client := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := client.ListVehicles(context.Background())
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, fetchErr.Error(), "missing data field")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 50*time.Millisecond, zap.NewNop())
	_, err := client.ListVehicles(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", 0, zap.NewNop())
	assert.Equal(t, DefaultEndpoint, client.Endpoint())
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
}
