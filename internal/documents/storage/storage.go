package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	docerrors "travelbook/internal/documents/errors"
	"travelbook/pkg/config"
	"travelbook/pkg/model"
)

const (
	PDFExtension = ".pdf"

	// maxNameAttempts bounds the name_N.pdf collision search.
	maxNameAttempts = 1000
)

// Object is an opened document. Exactly one of Body or RedirectURL is set.
type Object struct {
	Document    model.Document
	Body        io.ReadCloser
	RedirectURL string
}

// Storage keeps PDFs in a per-owner folder. Save never overwrites: when the
// name is taken it stores under name_1.pdf, name_2.pdf and so on, and
// returns the final name.
type Storage interface {
	Save(ctx context.Context, owner, name string, body io.Reader, size int64) (*model.Document, error)
	List(ctx context.Context, owner string) ([]model.Document, error)
	Open(ctx context.Context, owner, name string) (*Object, error)
}

func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.DocumentBackend {
	case config.DocumentsS3:
		return NewS3Storage(ctx, cfg)
	case config.DocumentsLocal:
		return NewLocalStorage(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown document backend: %s", cfg.DocumentBackend)
	}
}

// ViewURL is the API path a document is served from.
func ViewURL(name string) string {
	return "/api/v1/documents/" + name
}

// CheckName accepts only plain PDF base names.
func CheckName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return docerrors.ErrInvalidName
	}
	if !strings.EqualFold(path.Ext(name), PDFExtension) {
		return docerrors.ErrInvalidName
	}
	return nil
}

func checkOwner(owner string) error {
	if owner == "" || owner != path.Base(owner) || strings.ContainsAny(owner, `/\.`) {
		return docerrors.ErrInvalidOwner
	}
	return nil
}

// candidateName returns the n-th name to try for a collision-free save.
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}
