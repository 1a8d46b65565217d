package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAlertHandler_ListOpen(t *testing.T) {
	productID, display := uuid.New(), uuid.New()
	alert := inventory.ReorderAlert{
		ID:               uuid.New(),
		ProductID:        productID,
		LocationID:       display,
		ObservedQuantity: 4,
		Threshold:        decimal.NewFromInt(10),
		Kind:             inventory.AlertKindFastMoverReorder,
		AlertDate:        time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	}

	t.Run("default limit", func(t *testing.T) {
		alerts := &mockAlerts{}
		alerts.On("ListOpen", mock.Anything, (*uuid.UUID)(nil), defaultAlertLimit).
			Return([]inventory.ReorderAlert{alert}, nil)

		w, resp := doRequest(t, newTestEngine(NewAlertHandler(alerts)), http.MethodGet, "/api/v1/alerts", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultAlertLimit, resp.Meta.Limit)
		var out []dto.AlertResponse
		decodeData(t, resp, &out)
		require.Len(t, out, 1)
		assert.Equal(t, "FAST_MOVER_REORDER", out[0].Kind)
		assert.True(t, out[0].Threshold.Equal(decimal.NewFromInt(10)))
	})

	t.Run("product filter", func(t *testing.T) {
		alerts := &mockAlerts{}
		alerts.On("ListOpen", mock.Anything, &productID, 5).Return([]inventory.ReorderAlert{}, nil)

		w, _ := doRequest(t, newTestEngine(NewAlertHandler(alerts)), http.MethodGet,
			"/api/v1/alerts?product_id="+productID.String()+"&limit=5", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		alerts.AssertExpectations(t)
	})

	t.Run("bad product id", func(t *testing.T) {
		alerts := &mockAlerts{}
		w, _ := doRequest(t, newTestEngine(NewAlertHandler(alerts)), http.MethodGet, "/api/v1/alerts?product_id=nope", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAlertHandler_RetractResolved(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		alerts := &mockAlerts{}
		alerts.On("RetractResolved", mock.Anything).Return(int64(3), nil)

		w, resp := doRequest(t, newTestEngine(NewAlertHandler(alerts)), http.MethodPost, "/api/v1/alerts/retract", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var out dto.RetractResponse
		decodeData(t, resp, &out)
		assert.Equal(t, int64(3), out.Retracted)
	})

	t.Run("unexpected failure hides details", func(t *testing.T) {
		alerts := &mockAlerts{}
		alerts.On("RetractResolved", mock.Anything).Return(int64(0), errors.New("pq: relation missing"))

		w, resp := doRequest(t, newTestEngine(NewAlertHandler(alerts)), http.MethodPost, "/api/v1/alerts/retract", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq")
	})
}
