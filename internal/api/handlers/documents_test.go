package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, name string, body io.Reader, size int64) (*domain.Document, error) {
	args := m.Called(ctx, name, body, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context) ([]domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func multipartUpload(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentHandler_Upload(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Upload", mock.Anything, "doc1.txt", mock.Anything, int64(19)).
		Return(&domain.Document{Name: "doc1.txt", Size: 19}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).Upload(w, multipartUpload(t, "file", "doc1.txt", "Bedrock is managed."))

	assert.Equal(t, http.StatusCreated, w.Code)
	var result struct {
		Data UploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "doc1.txt", result.Data.Name)
	assert.Equal(t, int64(19), result.Data.Size)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_UploadMissingFile(t *testing.T) {
	svc := new(MockDocumentService)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).Upload(w, multipartUpload(t, "other", "doc1.txt", "x"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentHandler_UploadInvalidName(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Upload", mock.Anything, ".env", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidDocumentName)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).Upload(w, multipartUpload(t, "file", ".env", "SECRET=1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("List", mock.Anything).Return(nil, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"documents":[]}}`, w.Body.String())
}

func TestDocumentHandler_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("Delete", mock.Anything, "doc1.txt").Return(nil)

		w := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/doc1.txt", nil), "name", "doc1.txt")
		NewDocumentHandler(svc).Delete(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("Delete", mock.Anything, "missing.txt").Return(domain.ErrDocumentNotFound)

		w := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/missing.txt", nil), "name", "missing.txt")
		NewDocumentHandler(svc).Delete(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health("openai", "production")(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"openai","environment":"production"}`, w.Body.String())
}
