package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger store with the locking behaviour the
// service relies on from Postgres: wallet rows and idempotency keys are
// locked until the owning transaction ends, and writes become visible on commit.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	wallets  map[string]domain.DriverWallet
	entries  []domain.WalletLedgerEntry
	idemp    map[string]domain.IdempotencyLog
	audits   map[string]domain.AuditRecord
	rowLocks map[string]*sync.Mutex

	failEntryCreates int // next N entry inserts fail
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[string]domain.Order{},
		wallets:  map[string]domain.DriverWallet{},
		idemp:    map[string]domain.IdempotencyLog{},
		audits:   map[string]domain.AuditRecord{},
		rowLocks: map[string]*sync.Mutex{},
	}
}

func (s *memStore) rowLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[name]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[name] = l
	}
	return l
}

// ---- transactions ----

type memTx struct {
	pgx.Tx
	s       *memStore
	held    map[string]*sync.Mutex
	wallets map[string]domain.DriverWallet
	entries []domain.WalletLedgerEntry
	idemp   []domain.IdempotencyLog
	done    bool
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{s: s, held: map[string]*sync.Mutex{}, wallets: map[string]domain.DriverWallet{}}, nil
}

func (t *memTx) lock(name string) {
	if _, ok := t.held[name]; ok {
		return
	}
	l := t.s.rowLock(name)
	l.Lock()
	t.held[name] = l
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = map[string]*sync.Mutex{}
	t.done = true
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.s.mu.Lock()
	for id, w := range t.wallets {
		t.s.wallets[id] = w
	}
	t.s.entries = append(t.s.entries, t.entries...)
	for _, l := range t.idemp {
		t.s.idemp[l.Key] = l
	}
	t.s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

// ---- orders ----

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order %s", o.ID)
	}
	r.s.orders[o.ID] = *o
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r memOrders) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, terminalAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	if terminalAt != nil {
		o.TerminalAt = terminalAt
	}
	r.s.orders[id] = o
	return true, nil
}

func (r memOrders) AssignDriver(_ context.Context, id string, driverID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != domain.OrderStatusSearchingDriver {
		return false, nil
	}
	o.Status = domain.OrderStatusAssigned
	o.DriverID = &driverID
	r.s.orders[id] = o
	return true, nil
}

func (r memOrders) ListUnsettledDelivered(_ context.Context, limit int) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, o := range r.s.orders {
		if o.Status != domain.OrderStatusDelivered || !o.HasDriver() {
			continue
		}
		if _, ok := r.s.idemp[domain.BuildSettlementKey(o.ID)]; ok {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- wallets ----

type memWallets struct{ s *memStore }

func (r memWallets) GetByDriverID(_ context.Context, driverID string) (*domain.DriverWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[driverID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWallets) GetOrCreateForUpdate(_ context.Context, tx pgx.Tx, driverID string, creditLimit decimal.Decimal) (*domain.DriverWallet, error) {
	t := tx.(*memTx)
	t.lock("wallet:" + driverID)

	if w, ok := t.wallets[driverID]; ok {
		return &w, nil
	}
	r.s.mu.Lock()
	w, ok := r.s.wallets[driverID]
	r.s.mu.Unlock()
	if !ok {
		w = *domain.NewDriverWallet(driverID, creditLimit, time.Now().UTC())
	}
	t.wallets[driverID] = w
	return &w, nil
}

func (r memWallets) UpdateTotals(_ context.Context, tx pgx.Tx, w *domain.DriverWallet) error {
	t := tx.(*memTx)
	if w.PendingDebts.IsNegative() {
		return errors.New("check constraint: pending_debts >= 0")
	}
	t.wallets[w.DriverID] = *w
	return nil
}

// seed stores a wallet directly.
func (r memWallets) seed(w domain.DriverWallet) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.wallets[w.DriverID] = w
}

// ---- ledger entries ----

type memEntries struct{ s *memStore }

func (r memEntries) Create(_ context.Context, tx pgx.Tx, e *domain.WalletLedgerEntry) error {
	t := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failEntryCreates > 0 {
		r.s.failEntryCreates--
		return errors.New("ledger store unavailable")
	}
	if e.OrderID != nil {
		for _, x := range r.s.entries {
			if x.OrderID != nil && *x.OrderID == *e.OrderID && x.Kind == e.Kind {
				return fmt.Errorf("unique violation uq_ledger_order_kind (%s, %s)", *e.OrderID, e.Kind)
			}
		}
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (r memEntries) ListByOrder(_ context.Context, orderID string) ([]domain.WalletLedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.WalletLedgerEntry
	for _, e := range r.s.entries {
		if e.OrderID != nil && *e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memEntries) List(_ context.Context, p ports.EntryListParams) ([]domain.WalletLedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.WalletLedgerEntry
	for _, e := range r.s.entries {
		if e.DriverID != p.DriverID {
			continue
		}
		if p.Kind != nil && e.Kind != *p.Kind {
			continue
		}
		if p.Affects != nil && e.Affects != *p.Affects {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r memEntries) SumByTarget(_ context.Context, driverID string) (*ports.WalletTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := &ports.WalletTotals{Balance: decimal.Zero, PendingDebts: decimal.Zero}
	for _, e := range r.s.entries {
		if e.DriverID != driverID || e.PostingStatus != domain.PostingStatusCompleted {
			continue
		}
		switch e.Affects {
		case domain.TargetBalance:
			totals.Balance = totals.Balance.Add(e.Amount)
		case domain.TargetPendingDebt:
			totals.PendingDebts = totals.PendingDebts.Add(e.Amount)
		}
	}
	return totals, nil
}

func (r memEntries) GetStats(_ context.Context, driverID string, _ *time.Time) (*ports.EntryStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &ports.EntryStats{}
	for _, e := range r.s.entries {
		if e.DriverID != driverID {
			continue
		}
		st.TotalEntries++
		switch e.Kind {
		case domain.EntryKindCardOrderTransfer:
			st.CardOrders++
			st.CardEarnings = st.CardEarnings.Add(e.Amount)
		case domain.EntryKindCashOrderAdeudo:
			st.CashOrders++
			st.CashCommissions = st.CashCommissions.Add(e.Amount)
		case domain.EntryKindDebtPayment:
			st.DebtPayments = st.DebtPayments.Add(e.Amount)
		}
	}
	return st, nil
}

func (r memEntries) count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.entries)
}

// ---- idempotency ----

type memIdempotency struct{ s *memStore }

func (r memIdempotency) Create(_ context.Context, tx pgx.Tx, l *domain.IdempotencyLog) (bool, error) {
	t := tx.(*memTx)
	t.lock("idem:" + l.Key)
	r.s.mu.Lock()
	_, exists := r.s.idemp[l.Key]
	r.s.mu.Unlock()
	if exists {
		return false, nil
	}
	t.idemp = append(t.idemp, *l)
	return true, nil
}

func (r memIdempotency) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.idemp[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// ---- audits and alerts ----

type memAudits struct{ s *memStore }

func (r memAudits) Create(_ context.Context, rec *domain.AuditRecord) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.audits[rec.OrderID]; ok {
		return false, nil
	}
	r.s.audits[rec.OrderID] = *rec
	return true, nil
}

func (r memAudits) GetByOrderID(_ context.Context, orderID string) (*domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.audits[orderID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memAudits) List(_ context.Context, p ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AuditRecord
	for _, rec := range r.s.audits {
		if p.AlertsOnly && !rec.AlertAdmin {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

// ---- cache ----

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; !ok {
		c.data[key] = value
	}
	return nil
}
