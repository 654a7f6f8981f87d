package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"travelbook/internal/bookings/service"
	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"
	"travelbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type saveStepRequest struct {
	BookingID string          `json:"booking_id"`
	Data      json.RawMessage `json:"data"`
}

type bookingRequest struct {
	BookingID string `json:"booking_id"`
}

type payRequest struct {
	BookingID       string `json:"booking_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type cancelResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) SaveStep(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	step, err := strconv.Atoi(ps.ByName("step"))
	if err != nil {
		h.writeError(w, "SaveStep", apperrors.InvalidInput("step must be an integer between 0 and 4"))
		return
	}

	var req saveStepRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SaveStep", err)
		return
	}

	result, err := h.service.SaveStep(r.Context(), middleware.CallerFromContext(r.Context()), step, req.BookingID, req.Data)
	if err != nil {
		h.writeError(w, "SaveStep", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "SaveStep", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	result, err := h.service.Confirm(r.Context(), middleware.CallerFromContext(r.Context()), req.BookingID)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CreatePaymentIntent", err)
		return
	}

	result, err := h.service.CreatePaymentIntent(r.Context(), middleware.CallerFromContext(r.Context()), req.BookingID)
	if err != nil {
		h.writeError(w, "CreatePaymentIntent", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CreatePaymentIntent", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Pay(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req payRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Pay", err)
		return
	}

	result, err := h.service.ConfirmPayment(r.Context(), middleware.CallerFromContext(r.Context()), req.BookingID, req.PaymentIntentID)
	if err != nil {
		h.writeError(w, "Pay", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Pay", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	booking, err := h.service.Cancel(r.Context(), middleware.CallerFromContext(r.Context()), req.BookingID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, cancelResponse{BookingID: booking.ID, Status: string(booking.Status)}); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Get(r.Context(), middleware.CallerFromContext(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteNoContent(w); err != nil {
		h.log.Error("failed to write no content response", "handler", "Delete", "operation", "WriteNoContent", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings/step/:step", h.SaveStep)
	router.POST("/api/v1/bookings/confirm", h.Confirm)
	router.POST("/api/v1/bookings/create-payment-intent", h.CreatePaymentIntent)
	router.POST("/api/v1/bookings/pay", h.Pay)
	router.POST("/api/v1/bookings/cancel", h.Cancel)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
}
