package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapiao/internal/domain"
)

// stubExtractor returns a fixed outcome and records the path it was given.
type stubExtractor struct {
	record  *domain.InvoiceRecord
	failure *domain.DocumentFailure
	gotPath string
}

func (s *stubExtractor) ProcessOne(_ context.Context, path string) (*domain.InvoiceRecord, *domain.DocumentFailure) {
	s.gotPath = path
	if s.failure != nil {
		return nil, s.failure
	}
	rec := *s.record
	rec.SourcePath = path
	return &rec, nil
}

func newTestRouter(stub *stubExtractor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/invoices/extract", NewExtractHandler(stub, 1).Extract)
	return r
}

func multipartPDF(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestExtract_Success(t *testing.T) {
	number := "12345678"
	stub := &stubExtractor{record: &domain.InvoiceRecord{InvoiceNumber: &number}}
	r := newTestRouter(stub)

	body, contentType := multipartPDF(t, "invoice.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, stub.gotPath, "invoice.pdf")
}

func TestExtract_MissingFile(t *testing.T) {
	r := newTestRouter(&stubExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/extract", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "EMPTY_UPLOAD", resp.Error.Code)
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	r := newTestRouter(&stubExtractor{})

	body, contentType := multipartPDF(t, "invoice.jpg", []byte("not a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", resp.Error.Code)
}

func TestExtract_RejectsOversizedFile(t *testing.T) {
	r := newTestRouter(&stubExtractor{})

	// Handler limit is 1 MB.
	body, contentType := multipartPDF(t, "big.pdf", bytes.Repeat([]byte("x"), 2*1024*1024))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExtract_PipelineFailure(t *testing.T) {
	stub := &stubExtractor{failure: &domain.DocumentFailure{
		SourcePath: "/tmp/x.pdf",
		Stage:      domain.StageRecognizing,
		Kind:       domain.FailureRecognition,
		Message:    "engine not installed",
	}}
	r := newTestRouter(stub)

	body, contentType := multipartPDF(t, "invoice.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "EXTRACTION_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "recognizing")
}
