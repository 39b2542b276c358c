package service

import (
	"context"
	"io"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"go.uber.org/zap"
)

// DocumentService manages the files that make up the knowledge base.
// Indexing happens separately through IngestService.
type DocumentService struct {
	store  DocumentStore
	logger *zap.Logger
}

func NewDocumentService(store DocumentStore, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{store: store, logger: logger}
}

// Upload stores a document under name, replacing any existing one.
func (s *DocumentService) Upload(ctx context.Context, name string, body io.Reader, size int64) (*domain.Document, error) {
	if err := domain.ValidateDocumentName(name); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, name, body, size); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrStorageOperationFail.Code, domain.ErrStorageOperationFail.Message, err)
	}

	s.logger.Info("document uploaded", zap.String("name", name), zap.Int64("size", size))
	return &domain.Document{Name: name, Size: size}, nil
}

func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrStorageOperationFail.Code, domain.ErrStorageOperationFail.Message, err)
	}
	return docs, nil
}

func (s *DocumentService) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateDocumentName(name); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, name); err != nil {
		if domainErr, ok := err.(*domain.DomainError); ok {
			return domainErr
		}
		return domain.NewDomainErrorWithCause(domain.ErrStorageOperationFail.Code, domain.ErrStorageOperationFail.Message, err)
	}

	s.logger.Info("document deleted", zap.String("name", name))
	return nil
}
