package handler

import (
	"strconv"
	"time"

	"driver-settlement-engine/internal/adapter/http/dto"
	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// DriverHandler handles wallet, ledger and eligibility endpoints for one driver.
type DriverHandler struct {
	reportingSvc ports.ReportingService
	ledgerSvc    ports.LedgerService
	gate         ports.DebtGate
	currency     string
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(reportingSvc ports.ReportingService, ledgerSvc ports.LedgerService, gate ports.DebtGate, currency string) *DriverHandler {
	return &DriverHandler{
		reportingSvc: reportingSvc,
		ledgerSvc:    ledgerSvc,
		gate:         gate,
		currency:     currency,
	}
}

// GetWallet handles GET /api/v1/drivers/:id/wallet.
func (h *DriverHandler) GetWallet(c *gin.Context) {
	wallet, err := h.reportingSvc.GetWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(*wallet, h.currency))
}

// VerifyWallet handles GET /api/v1/drivers/:id/wallet/verify.
func (h *DriverHandler) VerifyWallet(c *gin.Context) {
	v, err := h.reportingSvc.VerifyWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Eligibility handles GET /api/v1/drivers/:id/eligibility?payment_method=CASH.
func (h *DriverHandler) Eligibility(c *gin.Context) {
	method := domain.PaymentMethod(c.DefaultQuery("payment_method", string(domain.PaymentMethodCash)))

	res, err := h.gate.Check(c.Request.Context(), ports.AssignmentEligibilityQuery{
		DriverID:           c.Param("id"),
		OrderPaymentMethod: method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.EligibilityResponse{
		DriverID:      res.DriverID,
		PaymentMethod: string(method),
		Eligible:      res.Eligible,
		Reason:        res.Reason,
		Wallet:        dto.NewWalletResponse(res.Wallet, h.currency),
	})
}

// GetStats handles GET /api/v1/drivers/:id/stats.
func (h *DriverHandler) GetStats(c *gin.Context) {
	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.GetStats(c.Request.Context(), c.Param("id"), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewStatsResponse(period, stats))
}

// ListEntries handles GET /api/v1/drivers/:id/entries.
func (h *DriverHandler) ListEntries(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.EntryListParams{
		DriverID: c.Param("id"),
		Page:     page,
		PageSize: pageSize,
	}

	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(k)
		params.Kind = &kind
	}
	if a := c.Query("affects"); a != "" {
		target := domain.BalanceTarget(a)
		params.Affects = &target
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			from := time.Unix(v, 0).UTC()
			params.From = &from
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			to := time.Unix(v, 0).UTC()
			params.To = &to
		}
	}

	entries, total, err := h.reportingSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewEntryResponse(e))
	}
	response.Paginated(c, items, total, page, pageSize)
}

// PostEntry handles POST /api/v1/drivers/:id/entries.
func (h *DriverHandler) PostEntry(c *gin.Context) {
	var req dto.ManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.ledgerSvc.Post(c.Request.Context(), ports.ManualEntryRequest{
		DriverID:  c.Param("id"),
		Kind:      domain.EntryKind(req.Kind),
		Amount:    dto.ParseAmount(req.Amount),
		Reference: req.Reference,
		Note:      req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ManualEntryResponse{
		Entry:  dto.NewEntryResponse(res.Entry),
		Wallet: dto.NewWalletResponse(res.Wallet, h.currency),
	})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
