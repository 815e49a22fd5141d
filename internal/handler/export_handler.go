package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// ExportHandler handles report generation and signed downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Generate report
// @Description Render a payment or enrollment report and return a signed download URL
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download report
// @Description Stream a previously generated report using its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.service.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(info.Name()) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", "attachment; filename="+info.Name())
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
