package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"travelbook/internal/weather/service"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

type mockWeatherService struct {
	currentFunc func(ctx context.Context, city string) (*service.Report, error)
}

func (m *mockWeatherService) Current(ctx context.Context, city string) (*service.Report, error) {
	return m.currentFunc(ctx, city)
}

func newTestRouter(svc *mockWeatherService) *httprouter.Router {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	router := httprouter.New()
	NewWeatherHandler(svc, log).RegisterRoutes(router)
	return router
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"missing city", apperrors.InvalidInput("city is required"), http.StatusBadRequest},
		{"unknown city", apperrors.NotFound("City"), http.StatusNotFound},
		{"upstream down", apperrors.BadGateway("Failed to fetch weather", nil), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCity string
			svc := &mockWeatherService{
				currentFunc: func(_ context.Context, city string) (*service.Report, error) {
					gotCity = city
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.Report{City: "Lisbon", Suitable: true}, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?city=Lisbon", nil)
			rec := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "Lisbon", gotCity)
		})
	}
}
