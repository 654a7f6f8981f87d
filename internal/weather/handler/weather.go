package handler

import (
	"net/http"

	"travelbook/internal/weather/service"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type WeatherHandler struct {
	service service.WeatherService
	log     *logger.Logger
}

func NewWeatherHandler(service service.WeatherService, log *logger.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		log:     log,
	}
}

func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	report, err := h.service.Current(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Current", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.log.Error("failed to write success response", "handler", "Current", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WeatherHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/weather", h.Current)
}
