package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"travelbook/internal/documents/service"
	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"
	"travelbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const (
	uploadField = "file"

	// multipartOverhead is the allowance for boundaries and part headers on
	// top of the file itself.
	multipartOverhead = 1 << 20
)

type DocumentHandler struct {
	service       service.DocumentService
	maxUploadSize int64
	log           *logger.Logger
}

func NewDocumentHandler(service service.DocumentService, maxUploadSize int, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:       service,
		maxUploadSize: int64(maxUploadSize),
		log:           log,
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	file, header, err := h.uploadedFile(r)
	if err != nil {
		h.writeError(w, "Upload", err)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.writeError(w, "Upload", apperrors.PayloadTooLarge(h.maxUploadSize))
		return
	}

	doc, err := h.service.Upload(r.Context(), middleware.CallerFromContext(r.Context()), header.Filename, file)
	if err != nil {
		h.writeError(w, "Upload", err)
		return
	}

	if err := httputil.WriteCreated(w, doc); err != nil {
		h.log.Error("failed to write created response", "handler", "Upload", "operation", "WriteCreated", "error", err)
	}
}

// uploadedFile returns the "file" part, or the first file part when the
// client used another field name.
func (h *DocumentHandler) uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, apperrors.PayloadTooLarge(h.maxUploadSize)
		}
		return nil, nil, apperrors.InvalidInput("Expected a multipart/form-data upload")
	}

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		fields := make([]string, 0, len(r.MultipartForm.File))
		for field, fh := range r.MultipartForm.File {
			if len(fh) > 0 {
				fields = append(fields, field)
			}
		}
		if len(fields) == 0 {
			return nil, nil, apperrors.InvalidInput("No file received in request")
		}
		sort.Strings(fields)
		headers = r.MultipartForm.File[fields[0]]
	}

	header := headers[0]
	if header.Filename == "" {
		return nil, nil, apperrors.InvalidInput("No selected file")
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to read uploaded file", err)
	}
	return file, header, nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	docs, err := h.service.List(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, docs); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	obj, err := h.service.Open(r.Context(), middleware.CallerFromContext(r.Context()), ps.ByName("name"))
	if err != nil {
		h.writeError(w, "View", err)
		return
	}

	if obj.RedirectURL != "" {
		http.Redirect(w, r, obj.RedirectURL, http.StatusFound)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", obj.Document.Name))

	if seeker, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, obj.Document.Name, obj.Document.UploadedAt, seeker)
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.Error("failed to stream document", "handler", "View", "operation", "Copy", "error", err)
	}
}

func (h *DocumentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *DocumentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/documents", h.Upload)
	router.GET("/api/v1/documents", h.List)
	router.GET("/api/v1/documents/:name", h.View)
}
