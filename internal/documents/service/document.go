package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	docerrors "travelbook/internal/documents/errors"
	"travelbook/internal/documents/receipt"
	"travelbook/internal/documents/storage"
	"travelbook/pkg/config"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/model"
	"travelbook/pkg/sanitizer"

	"github.com/gabriel-vasile/mimetype"
)

const pdfMIME = "application/pdf"

type DocumentService interface {
	Upload(ctx context.Context, caller model.Caller, filename string, body io.Reader) (*model.Document, error)
	List(ctx context.Context, caller model.Caller) ([]model.Document, error)
	Open(ctx context.Context, caller model.Caller, name string) (*storage.Object, error)
	// SaveReceipt stores the receipt for a paid booking in its owner's
	// folder. An existing receipt is returned unchanged.
	SaveReceipt(ctx context.Context, booking *model.Booking, payment *model.Payment) (*model.Document, error)
}

type documentService struct {
	store storage.Storage
	cfg   *config.Config
}

func NewDocumentService(store storage.Storage, cfg *config.Config) DocumentService {
	return &documentService{
		store: store,
		cfg:   cfg,
	}
}

func (s *documentService) Upload(ctx context.Context, caller model.Caller, filename string, body io.Reader) (*model.Document, error) {
	if !caller.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	name := sanitizer.SecureFilename(filename)
	if name == "" || !strings.EqualFold(path.Ext(name), storage.PDFExtension) {
		return nil, apperrors.InvalidInput("Invalid file type. Only PDF allowed.")
	}

	limit := int64(s.cfg.MaxUploadSize)
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, apperrors.InvalidInput("Failed to read uploaded file")
	}
	if int64(len(data)) > limit {
		return nil, apperrors.PayloadTooLarge(limit)
	}
	if len(data) == 0 {
		return nil, apperrors.InvalidInput("Uploaded file is empty")
	}
	if !mimetype.Detect(data).Is(pdfMIME) {
		return nil, apperrors.InvalidInput("Invalid file type. Only PDF allowed.")
	}

	doc, err := s.store.Save(ctx, caller.UserID, name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, s.storageError(err, name, "Failed to store document")
	}

	s.cfg.Log.Info("Document uploaded", "user_id", caller.UserID, "name", doc.Name, "size", doc.Size)
	return doc, nil
}

func (s *documentService) List(ctx context.Context, caller model.Caller) ([]model.Document, error) {
	if !caller.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	docs, err := s.store.List(ctx, caller.UserID)
	if err != nil {
		return nil, s.storageError(err, "", "Failed to list documents")
	}
	return docs, nil
}

func (s *documentService) Open(ctx context.Context, caller model.Caller, name string) (*storage.Object, error) {
	if !caller.Authenticated() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	obj, err := s.store.Open(ctx, caller.UserID, name)
	if err != nil {
		return nil, s.storageError(err, name, "Failed to open document")
	}
	return obj, nil
}

func (s *documentService) SaveReceipt(ctx context.Context, booking *model.Booking, payment *model.Payment) (*model.Document, error) {
	if !booking.IsOwned() {
		return nil, fmt.Errorf("booking %s has no owner to receive a receipt", booking.ID)
	}

	name := receipt.FileName(booking.ID)
	existing, err := s.store.Open(ctx, booking.OwnerID, name)
	switch {
	case err == nil:
		if existing.Body != nil {
			_ = existing.Body.Close()
		}
		return &existing.Document, nil
	case !errors.Is(err, docerrors.ErrNotFound):
		return nil, fmt.Errorf("failed to check existing receipt: %w", err)
	}

	pdf, err := receipt.Render(booking, payment)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Save(ctx, booking.OwnerID, name, bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	s.cfg.Log.Info("Receipt stored", "booking_id", booking.ID, "user_id", booking.OwnerID, "name", doc.Name)
	return doc, nil
}

func (s *documentService) storageError(err error, name, message string) error {
	switch {
	case errors.Is(err, docerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Document", name)
	case errors.Is(err, docerrors.ErrInvalidName), errors.Is(err, docerrors.ErrInvalidOwner):
		return apperrors.InvalidInput("Invalid document name")
	default:
		s.cfg.Log.Error(message, "name", name, "error", err)
		return apperrors.Internal(message, err)
	}
}
