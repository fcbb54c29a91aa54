package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/internal/service"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
	"github.com/noah-isme/student-portal/pkg/response"
)

type exportService interface {
	Generate(ctx context.Context, sessionID, format string) (*service.ExportResult, error)
	Open(token string) (*service.Download, error)
}

// ExportHandler renders screens to files and serves the signed downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler. A nil service disables exports.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Generate godoc
// @Summary Export the loaded screen
// @Tags Exports
// @Produce json
// @Param id path string true "Session ID"
// @Param format query string true "csv, pdf or xlsx"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/screen/export [get]
func (h *ExportHandler) Generate(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ExportResponse{
		ID:        result.ID,
		Format:    result.Format,
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt,
	})
}

// Download godoc
// @Summary Download an export via its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, download.ContentType, download.File, nil)
}
