package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockStock struct{ mock.Mock }

func (m *mockStock) Deduct(ctx context.Context, req appinv.DeductRequest) (*appinv.DeductResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*appinv.DeductResult)
	return res, args.Error(1)
}

func (m *mockStock) Transfer(ctx context.Context, req appinv.TransferRequest) ([]inventory.StockMovement, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).([]inventory.StockMovement)
	return res, args.Error(1)
}

func (m *mockStock) ReceiveBatch(ctx context.Context, req appinv.ReceiveBatchRequest) (*inventory.Batch, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*inventory.Batch)
	return res, args.Error(1)
}

func (m *mockStock) WriteOffExpired(ctx context.Context, productID uuid.UUID, actor string) (*appinv.WriteOffResult, error) {
	args := m.Called(ctx, productID, actor)
	res, _ := args.Get(0).(*appinv.WriteOffResult)
	return res, args.Error(1)
}

func (m *mockStock) GetQuantity(ctx context.Context, productID, locationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, productID, locationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStock) GetStockSummary(ctx context.Context, productID uuid.UUID) (*appinv.StockSummary, error) {
	args := m.Called(ctx, productID)
	res, _ := args.Get(0).(*appinv.StockSummary)
	return res, args.Error(1)
}

func (m *mockStock) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	args := m.Called(ctx, filter)
	res, _ := args.Get(0).([]inventory.StockMovement)
	return res, args.Error(1)
}

type mockReorder struct{ mock.Mock }

func (m *mockReorder) GetReorderStatus(ctx context.Context, productID uuid.UUID) (*appinv.ReorderStatus, error) {
	args := m.Called(ctx, productID)
	res, _ := args.Get(0).(*appinv.ReorderStatus)
	return res, args.Error(1)
}

func (m *mockReorder) SetConfiguredCapacity(ctx context.Context, productID uuid.UUID, capacity *int64) (*inventory.StockProfile, error) {
	args := m.Called(ctx, productID, capacity)
	res, _ := args.Get(0).(*inventory.StockProfile)
	return res, args.Error(1)
}

type mockLocations struct{ mock.Mock }

func (m *mockLocations) CreateLocation(ctx context.Context, req appinv.CreateLocationRequest) (*inventory.Location, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*inventory.Location)
	return res, args.Error(1)
}

func (m *mockLocations) GetLocation(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*inventory.Location)
	return res, args.Error(1)
}

func (m *mockLocations) ListLocations(ctx context.Context, kind string) ([]inventory.Location, error) {
	args := m.Called(ctx, kind)
	res, _ := args.Get(0).([]inventory.Location)
	return res, args.Error(1)
}

func (m *mockLocations) SetPlacement(ctx context.Context, productID, locationID uuid.UUID, capacity, minThreshold int64) (*inventory.Placement, error) {
	args := m.Called(ctx, productID, locationID, capacity, minThreshold)
	res, _ := args.Get(0).(*inventory.Placement)
	return res, args.Error(1)
}

func (m *mockLocations) GetPlacements(ctx context.Context, productID uuid.UUID) ([]inventory.Placement, error) {
	args := m.Called(ctx, productID)
	res, _ := args.Get(0).([]inventory.Placement)
	return res, args.Error(1)
}

type mockAlerts struct{ mock.Mock }

func (m *mockAlerts) ListOpen(ctx context.Context, productID *uuid.UUID, limit int) ([]inventory.ReorderAlert, error) {
	args := m.Called(ctx, productID, limit)
	res, _ := args.Get(0).([]inventory.ReorderAlert)
	return res, args.Error(1)
}

func (m *mockAlerts) RetractResolved(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) States() []scheduler.JobState {
	return m.Called().Get(0).([]scheduler.JobState)
}

func (m *mockJobs) RunNow(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

// apiResponse mirrors dto.Response with raw data for per-test decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
	Meta *struct {
		Count int `json:"count"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestEngine(handlers ...registrar) *gin.Engine {
	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Actor())
	api := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, out))
}
