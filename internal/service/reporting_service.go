package service

import (
	"context"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/shopspring/decimal"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	walletRepo  ports.WalletRepository
	entryRepo   ports.LedgerEntryRepository
	auditRepo   ports.AuditRepository
	creditLimit decimal.Decimal
	now         func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerEntryRepository,
	auditRepo ports.AuditRepository,
	creditLimit decimal.Decimal,
) ports.ReportingService {
	return &reportingService{
		walletRepo:  walletRepo,
		entryRepo:   entryRepo,
		auditRepo:   auditRepo,
		creditLimit: creditLimit,
		now:         time.Now,
	}
}

// GetWallet returns the driver's wallet; a driver with no postings gets an empty one.
func (s *reportingService) GetWallet(ctx context.Context, driverID string) (*domain.DriverWallet, error) {
	wallet, err := s.walletRepo.GetByDriverID(ctx, driverID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return domain.NewDriverWallet(driverID, s.creditLimit, s.now().UTC()), nil
	}
	return wallet, nil
}

// ListEntries returns a page of the driver's ledger.
func (s *reportingService) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.WalletLedgerEntry, int64, error) {
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, 0, apperror.Validation("invalid entry kind")
	}
	if params.Affects != nil && *params.Affects != domain.TargetBalance && *params.Affects != domain.TargetPendingDebt {
		return nil, 0, apperror.Validation("affects must be BALANCE or PENDING_DEBT")
	}
	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// GetStats aggregates the driver's ledger over day, week, month or all.
func (s *reportingService) GetStats(ctx context.Context, driverID string, period string) (*ports.EntryStats, error) {
	var since *time.Time

	switch period {
	case "day":
		t := s.now().AddDate(0, 0, -1)
		since = &t
	case "week":
		t := s.now().AddDate(0, 0, -7)
		since = &t
	case "month":
		t := s.now().AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.entryRepo.GetStats(ctx, driverID, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// GetOrderSettlement returns the entries an order posted, in posting order.
// The order counts as settled once its CARD or CASH settlement entry is COMPLETED.
func (s *reportingService) GetOrderSettlement(ctx context.Context, orderID string) (*ports.OrderSettlement, error) {
	entries, err := s.entryRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	view := &ports.OrderSettlement{OrderID: orderID, Entries: entries}
	for _, e := range entries {
		if e.Kind.IsOrderSettlement() && e.PostingStatus == domain.PostingStatusCompleted {
			view.Settled = true
		}
	}
	return view, nil
}

// VerifyWallet recomputes the wallet figures from COMPLETED entries and
// compares them with the stored ones.
func (s *reportingService) VerifyWallet(ctx context.Context, driverID string) (*ports.WalletVerification, error) {
	wallet, err := s.GetWallet(ctx, driverID)
	if err != nil {
		return nil, err
	}
	totals, err := s.entryRepo.SumByTarget(ctx, driverID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	v := &ports.WalletVerification{
		DriverID:             driverID,
		StoredBalance:        wallet.Balance,
		LedgerBalance:        totals.Balance,
		StoredPendingDebts:   wallet.PendingDebts,
		LedgerPendingDebts:   totals.PendingDebts,
		PendingDebtsNegative: wallet.PendingDebts.IsNegative() || totals.PendingDebts.IsNegative(),
	}
	v.Consistent = wallet.Balance.Equal(totals.Balance) &&
		wallet.PendingDebts.Equal(totals.PendingDebts) &&
		!v.PendingDebtsNegative
	return v, nil
}

// ListAuditRecords returns a page of audit records, optionally only those that alerted.
func (s *reportingService) ListAuditRecords(ctx context.Context, params ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	records, total, err := s.auditRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return records, total, nil
}
