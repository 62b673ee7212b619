package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/config"
	"projector-service/internal/driver/epson"
	"projector-service/internal/model"
	"projector-service/internal/protocol"
	"projector-service/internal/service"
	"projector-service/internal/utils"
	"projector-service/pkg/driver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockProjector struct {
	mock.Mock
}

func (m *mockProjector) GetPower(ctx context.Context) (driver.PowerCode, error) {
	args := m.Called()
	return args.Get(0).(driver.PowerCode), args.Error(1)
}

func (m *mockProjector) SendCommand(ctx context.Context, commandID string) (string, error) {
	args := m.Called(commandID)
	return args.String(0), args.Error(1)
}

func (m *mockProjector) ReadConfigValue(ctx context.Context, propertyID string) (int, error) {
	args := m.Called(propertyID)
	return args.Int(0), args.Error(1)
}

func (m *mockProjector) WriteConfigValue(ctx context.Context, propertyID string, human int) error {
	args := m.Called(propertyID, human)
	return args.Error(0)
}

func (m *mockProjector) GetProperty(ctx context.Context, code string, opts ...driver.PropertyOption) (string, error) {
	args := m.Called(code)
	return args.String(0), args.Error(1)
}

func (m *mockProjector) GetSerialNumber(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockProjector) SendRaw(ctx context.Context, line string) (string, error) {
	args := m.Called(line)
	return args.String(0), args.Error(1)
}

func (m *mockProjector) Status() driver.ClientStatus {
	return driver.ClientStatus{SessionState: "CONNECTED"}
}

func (m *mockProjector) Close() error {
	return nil
}

type staticFactory struct {
	projector driver.Projector
}

func (f staticFactory) CreateProjector(info driver.ProjectorInfo, cat *catalog.Catalog, observer driver.BusyObserver) (driver.Projector, error) {
	return f.projector, nil
}

type testServer struct {
	router    *gin.Engine
	projector *mockProjector
	service   *service.ProjectorService
	bus       *service.EventBus
	ws        *WebSocketHandler
}

func newTestServer(t *testing.T, projectors ...config.ProjectorConfig) *testServer {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	cfg := &config.Config{
		App:        config.AppConfig{Name: "projector-service", Version: "test", Environment: "test"},
		Projectors: projectors,
		Commands: config.CommandConfig{
			BusyRetryDelay:  2 * time.Millisecond,
			BusyWaitTimeout: 20 * time.Millisecond,
		},
	}

	logger := zap.NewNop()
	projector := &mockProjector{}
	bus := service.NewEventBus(logger)
	go bus.Start()

	ps, err := service.NewProjectorService(cfg, cat, staticFactory{projector: projector}, bus, logger)
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(utils.RequestIDKey, "test-request")
		c.Next()
	})
	NewHealthHandler(ps, cfg, logger).RegisterRoutes(router.Group(""))
	NewProjectorHandler(ps, cat, logger).RegisterRoutes(router.Group("/api/v1"))
	ws := NewWebSocketHandler(ps, bus, nil, logger)
	ws.RegisterRoutes(router.Group("/ws"))

	t.Cleanup(func() {
		ws.Close()
		bus.Stop()
	})

	return &testServer{router: router, projector: projector, service: ps, bus: bus, ws: ws}
}

func cinema() config.ProjectorConfig {
	return config.ProjectorConfig{ID: "cinema", Name: "Cinema", Brand: "EPSON", Host: "10.0.0.5", Port: 3629}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", service.ErrProjectorNotFound, http.StatusNotFound},
		{"unknown command", fmt.Errorf("%w: DANCE", epson.ErrUnknownCommand), http.StatusNotFound},
		{"unknown choice", service.ErrUnknownChoice, http.StatusBadRequest},
		{"out of range", fmt.Errorf("write: %w", epson.ErrOutOfRange), http.StatusBadRequest},
		{"read only", epson.ErrReadOnly, http.StatusBadRequest},
		{"busy", epson.ErrBusy, http.StatusConflict},
		{"not ready", epson.ErrNotReady, http.StatusServiceUnavailable},
		{"device error", epson.ErrDeviceError, http.StatusBadGateway},
		{"handshake", protocol.ErrHandshake, http.StatusBadGateway},
		{"transport", &protocol.TransportError{Op: "dial", Addr: "10.0.0.5:3629", Err: errors.New("refused")}, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestProjectorHandler_ListAndGet(t *testing.T) {
	s := newTestServer(t, cinema())

	w, response := s.do(t, http.MethodGet, "/api/v1/projectors", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	assert.Len(t, response.Data, 1)
	assert.Equal(t, "test-request", response.RequestID)

	w, _ = s.do(t, http.MethodGet, "/api/v1/projectors/cinema", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, response = s.do(t, http.MethodGet, "/api/v1/projectors/lobby", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "NOT_FOUND", response.Error.Code)
}

func TestProjectorHandler_GetCatalog(t *testing.T) {
	s := newTestServer(t, cinema())

	w, response := s.do(t, http.MethodGet, "/api/v1/catalog", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["properties"])
	assert.NotEmpty(t, data["commands"])
}

func TestProjectorHandler_SetPower(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		current    driver.PowerCode
		command    string
		wantStatus int
		wantOp     model.OperationStatus
	}{
		{"on from standby", `{"state":"on"}`, driver.PowerStandby, "PWR ON", http.StatusOK, model.OperationStatusSuccess},
		{"off from on", `{"state":"OFF"}`, driver.PowerOn, "PWR OFF", http.StatusOK, model.OperationStatusSuccess},
		{"on while warming up", `{"state":"ON"}`, driver.PowerWarmUp, "", http.StatusOK, model.OperationStatusSkipped},
		{"invalid state", `{"state":"dim"}`, "", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, cinema())
			if tt.current != "" {
				s.projector.On("GetPower").Return(tt.current, nil)
			}
			if tt.command != "" {
				s.projector.On("SendCommand", tt.command).Return("", nil).Once()
			}

			w, response := s.do(t, http.MethodPut, "/api/v1/projectors/cinema/power", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantOp != "" {
				data := response.Data.(map[string]interface{})
				assert.Equal(t, string(tt.wantOp), data["status"])
			}
			s.projector.AssertExpectations(t)
		})
	}
}

func TestProjectorHandler_Properties(t *testing.T) {
	s := newTestServer(t, cinema())
	s.projector.On("WriteConfigValue", "BRIGHTNESS", 40).Return(nil).Once()
	s.projector.On("WriteConfigValue", "BRIGHTNESS", 150).Return(fmt.Errorf("%w: 150", epson.ErrOutOfRange)).Once()
	s.projector.On("ReadConfigValue", "BRIGHTNESS").Return(40, nil)

	w, response := s.do(t, http.MethodPut, "/api/v1/projectors/cinema/properties/BRIGHTNESS", `{"value":40}`)
	assert.Equal(t, http.StatusOK, w.Code)
	result := response.Data.(map[string]interface{})["result"].(map[string]interface{})
	assert.EqualValues(t, 40, result["value"])

	w, response = s.do(t, http.MethodPut, "/api/v1/projectors/cinema/properties/BRIGHTNESS", `{"value":150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", response.Error.Code)

	w, response = s.do(t, http.MethodPut, "/api/v1/projectors/cinema/properties/BRIGHTNESS", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", response.Error.Code)

	w, response = s.do(t, http.MethodGet, "/api/v1/projectors/cinema/properties/BRIGHTNESS", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 40, response.Data.(map[string]interface{})["value"])
}

func TestProjectorHandler_RawPropertyBusy(t *testing.T) {
	s := newTestServer(t, cinema())
	s.projector.On("GetProperty", "LAMP").Return("", epson.ErrBusy)

	w, response := s.do(t, http.MethodGet, "/api/v1/projectors/cinema/raw/lamp", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PROJECTOR_BUSY", response.Error.Code)
}

func TestProjectorHandler_SerialNotReady(t *testing.T) {
	s := newTestServer(t, cinema())
	s.projector.On("GetSerialNumber").Return("", epson.ErrNotReady)

	w, response := s.do(t, http.MethodGet, "/api/v1/projectors/cinema/serial", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "PROJECTOR_NOT_READY", response.Error.Code)
}

func TestProjectorHandler_Options(t *testing.T) {
	s := newTestServer(t, cinema())
	s.projector.On("GetProperty", "ASPECT").Return("40", nil)

	w, response := s.do(t, http.MethodGet, "/api/v1/projectors/cinema/options/ASPECT", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Full", response.Data.(map[string]interface{})["label"])

	w, _ = s.do(t, http.MethodPut, "/api/v1/projectors/cinema/options/ASPECT", `{"value":"Stretched"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPut, "/api/v1/projectors/cinema/options/SIGNAL", `{"value":"HDMI"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/projectors/cinema/options/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, cinema())

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "unknown", health.Checks["projector:cinema"].Status)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	empty := newTestServer(t)
	w = httptest.NewRecorder()
	empty.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message WebSocketMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestWebSocketHandler_ProjectorConnection(t *testing.T) {
	s := newTestServer(t, cinema())
	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/projectors/cinema"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readMessage(t, conn)
	assert.Equal(t, "initial_status", initial.Type)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "p1"}))
	pong := readMessage(t, conn)
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "p1", pong.RequestID)

	require.Eventually(t, func() bool {
		return s.ws.GetConnectionStats().TotalConnections == 1
	}, time.Second, 10*time.Millisecond)

	s.bus.Publish(model.NewProjectorEvent(model.EventPowerChanged, "lobby", "poller", model.JSONObject{"power": "01"}))
	s.bus.Publish(model.NewProjectorEvent(model.EventPowerChanged, "cinema", "poller", model.JSONObject{"power": "01"}))

	event := readMessage(t, conn)
	assert.Equal(t, "projector_event", event.Type)
	data := event.Data.(map[string]interface{})
	assert.Equal(t, "cinema", data["projector_id"])
	assert.Equal(t, string(model.EventPowerChanged), data["event_type"])
}

func TestWebSocketHandler_UnknownProjector(t *testing.T) {
	s := newTestServer(t, cinema())

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/projectors/lobby", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler_Degraded(t *testing.T) {
	s := newTestServer(t, cinema())
	s.projector.On("GetPower").Return(driver.PowerAbnormalStandby, nil)

	_, err := s.service.RefreshPower(context.Background(), "cinema")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unhealthy", health.Checks["projector:cinema"].Status)
	assert.Equal(t, "Abnormal Standby", health.Checks["projector:cinema"].Data["power"])
}
