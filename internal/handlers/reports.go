package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/reports"
	"sacs-telemedicina-hub/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves spreadsheet exports for center administrators.
type ReportHandler struct {
	Views *appointments.Views
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(views *appointments.Views) *ReportHandler {
	return &ReportHandler{Views: views}
}

// ExportAppointments downloads the center's appointments as XLSX.
func (h *ReportHandler) ExportAppointments(c *gin.Context) {
	centerID := centerScope(c)
	if centerID == "" {
		utils.BadRequest(c, "centerId is required")
		return
	}
	items, err := h.Views.ByCenter(c.Request.Context(), centerID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	data, err := reports.ExportAppointments(items)
	if err != nil {
		utils.InternalServerError(c, "Failed to build report: "+err.Error())
		return
	}
	filename := fmt.Sprintf("citas_%s_%s.xlsx", centerID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
