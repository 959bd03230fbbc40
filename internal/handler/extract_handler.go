package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"fapiao/internal/domain"
)

// DocumentExtractor runs the full pipeline for a single document. A non-nil
// failure describes a per-document error; both may be nil only on context
// cancellation.
type DocumentExtractor interface {
	ProcessOne(ctx context.Context, path string) (*domain.InvoiceRecord, *domain.DocumentFailure)
}

// ExtractHandler exposes single-document extraction over HTTP.
type ExtractHandler struct {
	extractor   DocumentExtractor
	maxUploadMB int64
}

func NewExtractHandler(extractor DocumentExtractor, maxUploadMB int64) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, maxUploadMB: maxUploadMB}
}

// Extract handles POST /api/v1/invoices/extract. The multipart "file" part is
// staged to a temp file, pushed through the pipeline, and returned as a
// record or a failure descriptor.
func (h *ExtractHandler) Extract(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		HandleError(c, domain.ErrEmptyUpload)
		return
	}
	if fileHeader.Size == 0 {
		HandleError(c, domain.ErrEmptyUpload)
		return
	}
	if fileHeader.Size > h.maxUploadMB*1024*1024 {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		HandleError(c, domain.ErrUnsupportedFileType)
		return
	}

	tmpDir, err := os.MkdirTemp("", "fapiao-upload-*")
	if err != nil {
		HandleError(c, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	// Keep the original filename: it becomes the record's display name.
	tmpPath := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		HandleError(c, err)
		return
	}

	record, failure := h.extractor.ProcessOne(c.Request.Context(), tmpPath)
	if failure != nil {
		RespondError(c, http.StatusUnprocessableEntity, "EXTRACTION_FAILED",
			string(failure.Stage)+": "+failure.Message)
		return
	}
	if record == nil {
		HandleError(c, c.Request.Context().Err())
		return
	}
	RespondOK(c, record)
}
