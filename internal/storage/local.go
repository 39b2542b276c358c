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

	"github.com/cloo-solutions/agentrag/internal/domain"
)

// LocalStore keeps documents as flat files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	if err := domain.ValidateDocumentName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Put writes the document through a temporary file so readers never see a
// partial write.
func (s *LocalStore) Put(ctx context.Context, name string, body io.Reader, size int64) error {
	dst, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return f, nil
}

// List returns regular, non-hidden files ordered by name.
func (s *LocalStore) List(ctx context.Context) ([]domain.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || domain.ValidateDocumentName(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		docs = append(docs, domain.Document{
			Name:       e.Name(),
			Size:       info.Size(),
			ETag:       fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
