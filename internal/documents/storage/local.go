package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	docerrors "travelbook/internal/documents/errors"
	"travelbook/pkg/model"
)

type localStorage struct {
	root string
}

func NewLocalStorage(root string) (Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStorage{root: abs}, nil
}

func (s *localStorage) Save(_ context.Context, owner, name string, body io.Reader, _ int64) (*model.Document, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, owner)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create owner dir: %w", err)
	}

	for n := 0; n < maxNameAttempts; n++ {
		final := candidateName(name, n)
		f, err := os.OpenFile(filepath.Join(dir, final), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}

		written, err := io.Copy(f, body)
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(f.Name())
			return nil, fmt.Errorf("failed to write document: %w", err)
		}

		info, err := os.Stat(f.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to stat document: %w", err)
		}
		return &model.Document{
			Name:       final,
			Size:       written,
			UploadedAt: info.ModTime().UTC(),
			URL:        ViewURL(final),
		}, nil
	}
	return nil, fmt.Errorf("failed to find a free name for %s", name)
}

func (s *localStorage) List(_ context.Context, owner string) ([]model.Document, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, owner))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]model.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), PDFExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, model.Document{
			Name:       entry.Name(),
			Size:       info.Size(),
			UploadedAt: info.ModTime().UTC(),
			URL:        ViewURL(entry.Name()),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (s *localStorage) Open(_ context.Context, owner, name string) (*Object, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, owner)
	full := filepath.Join(dir, name)
	if rel, err := filepath.Rel(dir, full); err != nil || strings.HasPrefix(rel, "..") {
		return nil, docerrors.ErrInvalidName
	}

	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, docerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	return &Object{
		Document: model.Document{
			Name:       name,
			Size:       info.Size(),
			UploadedAt: info.ModTime().UTC(),
			URL:        ViewURL(name),
		},
		Body: f,
	}, nil
}
