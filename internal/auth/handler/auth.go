package handler

import (
	"net/http"

	"travelbook/internal/auth/service"
	"travelbook/internal/auth/validator"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"
	"travelbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type messageResponse struct {
	Message string `json:"message"`
}

type AuthHandler struct {
	service service.AuthService
	log     *logger.Logger
}

func NewAuthHandler(service service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.SignupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Signup", err)
		return
	}

	result, err := h.service.Signup(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Signup", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Signup", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := h.service.Me(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "Me", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.ResetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "RequestPasswordReset", err)
		return
	}

	result, err := h.service.RequestPasswordReset(r.Context(), &req)
	if err != nil {
		h.writeError(w, "RequestPasswordReset", err)
		return
	}

	if err := httputil.WriteAccepted(w, result); err != nil {
		h.log.Error("failed to write accepted response", "handler", "RequestPasswordReset", "operation", "WriteAccepted", "error", err)
	}
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.ResetConfirmRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}

	if err := httputil.WriteSuccess(w, messageResponse{Message: "Password has been reset"}); err != nil {
		h.log.Error("failed to write success response", "handler", "ResetPassword", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AuthHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/signup", h.Signup)
	router.POST("/api/v1/auth/login", h.Login)
	router.GET("/api/v1/auth/me", h.Me)
	router.POST("/api/v1/auth/password-reset", h.RequestPasswordReset)
	router.POST("/api/v1/auth/password-reset/confirm", h.ResetPassword)
}
