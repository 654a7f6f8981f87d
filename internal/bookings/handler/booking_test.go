package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"travelbook/internal/payments/gateway"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/logger"
	"travelbook/pkg/middleware"
	"travelbook/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	saveStepFunc       func(ctx context.Context, caller model.Caller, step int, bookingID string, data json.RawMessage) (*model.StepResult, error)
	confirmFunc        func(ctx context.Context, caller model.Caller, bookingID string) (*model.StepResult, error)
	createIntentFunc   func(ctx context.Context, caller model.Caller, bookingID string) (*model.PaymentIntentResult, error)
	confirmPaymentFunc func(ctx context.Context, caller model.Caller, bookingID, intentID string) (*model.PaymentResult, error)
	cancelFunc         func(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error)
	getFunc            func(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error)
	listFunc           func(ctx context.Context, caller model.Caller, status string, limit int, offset int64) ([]*model.Booking, int64, error)
	deleteFunc         func(ctx context.Context, caller model.Caller, bookingID string) error
}

func (m *mockBookingService) SaveStep(ctx context.Context, caller model.Caller, step int, bookingID string, data json.RawMessage) (*model.StepResult, error) {
	return m.saveStepFunc(ctx, caller, step, bookingID, data)
}

func (m *mockBookingService) Confirm(ctx context.Context, caller model.Caller, bookingID string) (*model.StepResult, error) {
	return m.confirmFunc(ctx, caller, bookingID)
}

func (m *mockBookingService) CreatePaymentIntent(ctx context.Context, caller model.Caller, bookingID string) (*model.PaymentIntentResult, error) {
	return m.createIntentFunc(ctx, caller, bookingID)
}

func (m *mockBookingService) ConfirmPayment(ctx context.Context, caller model.Caller, bookingID, intentID string) (*model.PaymentResult, error) {
	return m.confirmPaymentFunc(ctx, caller, bookingID, intentID)
}

func (m *mockBookingService) Cancel(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error) {
	return m.cancelFunc(ctx, caller, bookingID)
}

func (m *mockBookingService) Get(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error) {
	return m.getFunc(ctx, caller, bookingID)
}

func (m *mockBookingService) List(ctx context.Context, caller model.Caller, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, caller, status, limit, offset)
}

func (m *mockBookingService) Delete(ctx context.Context, caller model.Caller, bookingID string) error {
	return m.deleteFunc(ctx, caller, bookingID)
}

func (m *mockBookingService) ReconcileIntent(context.Context, *gateway.Intent) error {
	return nil
}

func (m *mockBookingService) GetPayment(context.Context, string) (*model.Payment, error) {
	return nil, apperrors.NotFound("Payment")
}

func newTestRouter(svc *mockBookingService) *httprouter.Router {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	router := httprouter.New()
	NewBookingHandler(svc, log).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, target, body string, caller model.Caller) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSaveStep(t *testing.T) {
	var gotStep int
	var gotID string
	var gotData json.RawMessage
	var gotCaller model.Caller

	svc := &mockBookingService{
		saveStepFunc: func(_ context.Context, caller model.Caller, step int, bookingID string, data json.RawMessage) (*model.StepResult, error) {
			gotStep, gotID, gotData, gotCaller = step, bookingID, data, caller
			return &model.StepResult{BookingID: "b1", Total: 500, NextURL: "/booking2.html?booking_id=b1"}, nil
		},
	}

	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/step/1", `{"booking_id":"b1","data":{"price":500}}`, model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotStep)
	assert.Equal(t, "b1", gotID)
	assert.JSONEq(t, `{"price":500}`, string(gotData))
	assert.Equal(t, "u1", gotCaller.UserID)

	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "b1", data["booking_id"])
	assert.Equal(t, 500.0, data["total"])
	assert.Equal(t, "/booking2.html?booking_id=b1", data["next_url"])
}

func TestSaveStep_BadStepParam(t *testing.T) {
	svc := &mockBookingService{}
	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/step/two", `{}`, model.Anonymous())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decodeBody(t, rec)["code"])
}

func TestSaveStep_MalformedBody(t *testing.T) {
	svc := &mockBookingService{}
	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/step/0", `{"data":`, model.Anonymous())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"ownership", apperrors.OwnershipViolation("Booking", "b1"), http.StatusForbidden, apperrors.CodeOwnershipViolation},
		{"not found", apperrors.NotFoundWithID("Booking", "b1"), http.StatusNotFound, apperrors.CodeNotFound},
		{"unauthenticated", apperrors.Unauthorized("Authentication required"), http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"conflict", apperrors.Conflict("Booking is cancelled"), http.StatusConflict, apperrors.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				confirmFunc: func(context.Context, model.Caller, string) (*model.StepResult, error) {
					return nil, tt.err
				},
			}
			rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/confirm", `{"booking_id":"b1"}`, model.Caller{UserID: "u1"})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["code"])
		})
	}
}

func TestPay(t *testing.T) {
	svc := &mockBookingService{
		confirmPaymentFunc: func(_ context.Context, _ model.Caller, bookingID, intentID string) (*model.PaymentResult, error) {
			assert.Equal(t, "b1", bookingID)
			assert.Equal(t, "pi_1", intentID)
			return &model.PaymentResult{PaymentID: "p1", TxnRef: "pi_1", BookingID: "b1", NextURL: model.DashboardURL("b1")}, nil
		},
	}

	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/pay", `{"booking_id":"b1","payment_intent_id":"pi_1"}`, model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "p1", data["payment_id"])
	assert.Equal(t, "/dashboard.html?booking_id=b1", data["next_url"])
}

func TestPay_AmountMismatch(t *testing.T) {
	svc := &mockBookingService{
		confirmPaymentFunc: func(context.Context, model.Caller, string, string) (*model.PaymentResult, error) {
			return nil, apperrors.AmountMismatch(53550, 50000)
		},
	}

	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/pay", `{"booking_id":"b1","payment_intent_id":"pi_1"}`, model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, apperrors.CodeAmountMismatch, body["code"])
	assert.Equal(t, 53550.0, body["details"].(map[string]any)["expected_minor"])
}

func TestCreatePaymentIntent_ProviderError(t *testing.T) {
	svc := &mockBookingService{
		createIntentFunc: func(context.Context, model.Caller, string) (*model.PaymentIntentResult, error) {
			return nil, apperrors.ProviderError(assert.AnError)
		},
	}

	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/create-payment-intent", `{"booking_id":"b1"}`, model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperrors.CodeProviderError, decodeBody(t, rec)["code"])
}

func TestCancel(t *testing.T) {
	svc := &mockBookingService{
		cancelFunc: func(_ context.Context, _ model.Caller, bookingID string) (*model.Booking, error) {
			return &model.Booking{ID: bookingID, Status: model.BookingCancelled}, nil
		},
	}

	rec := do(newTestRouter(svc), http.MethodPost, "/api/v1/bookings/cancel", `{"booking_id":"b1"}`, model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "cancelled", data["status"])
}

func TestList(t *testing.T) {
	svc := &mockBookingService{
		listFunc: func(_ context.Context, _ model.Caller, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
			assert.Equal(t, "confirmed", status)
			assert.Equal(t, 5, limit)
			assert.Equal(t, int64(10), offset)
			return []*model.Booking{{ID: "b1"}}, 11, nil
		},
	}

	rec := do(newTestRouter(svc), http.MethodGet, "/api/v1/bookings?status=confirmed&limit=5&offset=10", "", model.Caller{UserID: "u1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 11.0, body["total_count"])
	assert.Len(t, body["data"], 1)
}

func TestList_BadLimit(t *testing.T) {
	rec := do(newTestRouter(&mockBookingService{}), http.MethodGet, "/api/v1/bookings?limit=many", "", model.Caller{UserID: "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndDelete(t *testing.T) {
	svc := &mockBookingService{
		getFunc: func(_ context.Context, _ model.Caller, bookingID string) (*model.Booking, error) {
			return &model.Booking{ID: bookingID, Status: model.BookingDraft, TotalAmount: 12.5}, nil
		},
		deleteFunc: func(_ context.Context, _ model.Caller, bookingID string) error {
			if bookingID == "old" {
				return apperrors.Forbidden("Booking can only be deleted when cancelled or within 10m0s of creation")
			}
			return nil
		},
	}
	router := newTestRouter(svc)

	rec := do(router, http.MethodGet, "/api/v1/bookings/id/b1", "", model.Caller{UserID: "u1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.5, decodeBody(t, rec)["data"].(map[string]any)["total_amount"])

	rec = do(router, http.MethodDelete, "/api/v1/bookings/id/b1", "", model.Caller{UserID: "u1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodDelete, "/api/v1/bookings/id/old", "", model.Caller{UserID: "u1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
