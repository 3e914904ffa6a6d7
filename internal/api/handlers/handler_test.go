package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/api/catalog"
	"github.com/langchou/rentdesk/internal/api/handlers"
	"github.com/langchou/rentdesk/internal/metrics"
	"github.com/langchou/rentdesk/internal/models"
	"github.com/langchou/rentdesk/internal/service"
	"github.com/langchou/rentdesk/pkg/ws"
)

type stubSource struct {
	mu       sync.Mutex
	vehicles []models.Vehicle
	err      error
}

func (s *stubSource) ListVehicles(_ context.Context) ([]models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicles, s.err
}

func testVehicles() []models.Vehicle {
	return []models.Vehicle{
		{
			ID: "1", Make: "Toyota", Model: "Corolla", Type: "Sedan",
			Rates: models.Rates{Hourly: models.NewRate(0), Daily: models.NewRate(99), Weekly: models.NewRate(390)},
		},
		{
			ID: "2", Make: "Ford", Model: "Explorer", Type: "SUV",
			Rates: models.Rates{Hourly: models.NewRate(20), Daily: models.NewRate(129), Weekly: models.NewRate(600)},
		},
		{
			ID: "3", Make: "Kia", Model: "Rio", Type: "Sedan",
			Rates: models.Rates{Daily: models.NewRate(49)},
		},
	}
}

// buildTestRouter 组装与 main 相同的路由
func buildTestRouter(t *testing.T, src *stubSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hub := ws.NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	svc := service.NewReservationService(zap.NewNop(), src, models.DefaultChargeOptions(), m, time.Hour)
	svc.SetPublisher(hub)

	r := gin.New()
	r.Use(m.Middleware())
	handlers.NewHandler(zap.NewNop(), svc, hub, registry).RegisterRoutes(r)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type sessionResponse struct {
	ID    string `json:"id"`
	Quote *struct {
		DurationText string `json:"duration_text"`
		Summary      struct {
			Total string `json:"total"`
		} `json:"summary"`
	} `json:"quote"`
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var s sessionResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &s))
	require.NotEmpty(t, s.ID)
	return s.ID
}

func TestListVehicles_FilterByType(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodGet, "/api/vehicles?type=SUV", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var vehicles []models.Vehicle
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &vehicles))
	require.Len(t, vehicles, 1)
	assert.Equal(t, "Explorer", vehicles[0].Model)

	w = doRequest(r, http.MethodGet, "/api/vehicles", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &vehicles))
	assert.Len(t, vehicles, 3)

	w = doRequest(r, http.MethodGet, "/api/vehicles?type=Truck", nil)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestListVehicleTypesAndCharges(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodGet, "/api/vehicle-types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["All","Sedan","SUV"]}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/charges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Collision Damage Waiver")
	assert.Contains(t, w.Body.String(), `"kind":"percent"`)
}

func TestCatalogFailure_ReportsErrorAndReloads(t *testing.T) {
	src := &stubSource{err: &catalog.FetchError{StatusCode: http.StatusServiceUnavailable}}
	r := buildTestRouter(t, src)

	w := doRequest(r, http.MethodGet, "/api/vehicles", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Error: failed to fetch car data: status=503", decode(t, w).Error)

	src.mu.Lock()
	src.err = nil
	src.vehicles = testVehicles()
	src.mu.Unlock()

	// 失败后不会自动恢复
	w = doRequest(r, http.MethodGet, "/api/vehicles", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doRequest(r, http.MethodPost, "/api/catalog/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"vehicles":3`)

	w = doRequest(r, http.MethodGet, "/api/vehicles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQuote(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodPost, "/api/quote", map[string]interface{}{
		"pickup":     "2024-05-01T10:00:00Z",
		"return":     "2024-05-09T10:00:00Z",
		"vehicle_id": 1,
		"charges":    []string{"Collision Damage Waiver", "Rental Tax"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var q struct {
		DurationText string `json:"duration_text"`
		Summary      struct {
			Total string `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &q))
	assert.Equal(t, "1 Week 1 Day", q.DurationText)
	assert.Equal(t, "555.27", q.Summary.Total)
}

func TestQuote_Errors(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodPost, "/api/quote", map[string]interface{}{"vehicle_id": "3"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w).Error, "3")

	w = doRequest(r, http.MethodPost, "/api/quote", map[string]interface{}{"vehicle_id": "42"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/api/quote", map[string]interface{}{"charges": []string{"Snow Chains"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/quote", map[string]interface{}{"discount": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_EventsAndPrint(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})
	id := createSession(t, r)

	events := []map[string]interface{}{
		{"type": "pickup", "time": "2024-05-01T10:00:00Z"},
		{"type": "return", "time": "2024-05-09T10:00:00Z"},
		{"type": "vehicle_type", "vehicle_type": "Sedan"},
		{"type": "vehicle", "vehicle_id": "1"},
		{"type": "charge", "charge": "Collision Damage Waiver", "enabled": true},
		{"type": "customer", "customer": map[string]string{"first_name": "Ada", "last_name": "Lovelace"}},
	}
	for _, e := range events {
		w := doRequest(r, http.MethodPost, "/api/sessions/"+id+"/events", e)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doRequest(r, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s sessionResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &s))
	require.NotNil(t, s.Quote)
	assert.Equal(t, "498", s.Quote.Summary.Total)

	w = doRequest(r, http.MethodGet, "/api/sessions/"+id+"/print", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "$498.00")
	assert.Contains(t, w.Body.String(), "Ada Lovelace")
}

func TestSession_Errors(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/events", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/events", map[string]interface{}{"type": "vehicle_type", "vehicle_type": "SUV"})
	require.Equal(t, http.StatusOK, w.Code)

	// 车型与筛选不符
	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/events", map[string]interface{}{"type": "vehicle", "vehicle_id": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 单价缺失时仍返回表单
	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/events", map[string]interface{}{"type": "vehicle_type", "vehicle_type": "All"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodPost, "/api/sessions/"+id+"/events", map[string]interface{}{"type": "vehicle", "vehicle_id": "3"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w)
	assert.NotEmpty(t, env.Error)
	assert.Contains(t, string(env.Data), `"vehicle_id":"3"`)
}

func TestHealthAndMetrics(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})

	w := doRequest(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)

	doRequest(r, http.MethodGet, "/api/vehicles", nil)

	w = doRequest(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rentdesk_http_requests_total")
	assert.Contains(t, w.Body.String(), "rentdesk_catalog_vehicles 3")
}

func TestSessionWebSocket(t *testing.T) {
	r := buildTestRouter(t, &stubSource{vehicles: testVehicles()})
	id := createSession(t, r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() ws.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, ws.MsgTypeInit, read().Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "charge", "charge": "Liability Insurance", "enabled": true}))
	msg := read()
	assert.Equal(t, ws.MsgTypeSummary, msg.Type)
	assert.Contains(t, mustJSON(t, msg.Data), `"total":"15"`)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "teleport"}))
	assert.Equal(t, ws.MsgTypeError, read().Type)

	resp, err := http.Get(srv.URL + "/ws/sessions/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
