package controllers

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportController handles data export endpoints
type ExportController struct {
	exportService *services.ExportService
}

// NewExportController creates a new ExportController
func NewExportController(exportService *services.ExportService) *ExportController {
	return &ExportController{exportService: exportService}
}

// ExportExcel streams the filtered student listing as an xlsx workbook
func (c *ExportController) ExportExcel(ctx *gin.Context) {
	filter := repositories.ListFilter{
		Status:       ctx.Query("status"),
		Company:      ctx.Query("company"),
		TrainingType: ctx.Query("training_type"),
	}

	var buf bytes.Buffer
	filename, err := c.exportService.WriteExcel(ctx, filter, &buf)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
