package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/cloo-solutions/agentrag/internal/api"
	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/go-chi/chi/v5"
)

// maxUploadMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const maxUploadMemory = 8 << 20

type DocumentService interface {
	Upload(ctx context.Context, name string, body io.Reader, size int64) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, name string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type UploadResponse struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Message string `json:"message"`
}

type ListDocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}

// Upload stores the multipart "file" field under its original filename.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	doc, err := h.svc.Upload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UploadResponse{
		Name:    doc.Name,
		Size:    doc.Size,
		Message: "Document uploaded. It will be indexed on the next ingestion pass.",
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	api.Success(w, http.StatusOK, ListDocumentsResponse{Documents: docs})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.svc.Delete(r.Context(), name); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
