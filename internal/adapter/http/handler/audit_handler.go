package handler

import (
	"driver-settlement-engine/internal/adapter/http/dto"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler lists reconciliation records.
type AuditHandler struct {
	reportingSvc ports.ReportingService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(reportingSvc ports.ReportingService) *AuditHandler {
	return &AuditHandler{reportingSvc: reportingSvc}
}

// List handles GET /api/v1/audits?alerts_only=true.
func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.AuditListParams{
		AlertsOnly: c.Query("alerts_only") == "true",
		Page:       page,
		PageSize:   pageSize,
	}

	records, total, err := h.reportingSvc.ListAuditRecords(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AuditRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.NewAuditRecordResponse(r))
	}
	response.Paginated(c, items, total, page, pageSize)
}
