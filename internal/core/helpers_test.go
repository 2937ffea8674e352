package core_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"flower-pos/internal/core"
	"flower-pos/internal/logging"
	"flower-pos/internal/store/sqlite"
)

// Seeded catalog:
//
//	rose-red (legacy "42")  60cm stock 100 @ 62, 70cm stock 10 @ 75
//	tulip-white             40cm stock 5 @ 30
const (
	variantRose60  = "var-rose-60"
	variantRose70  = "var-rose-70"
	variantTulip40 = "var-tulip-40"
	customerID     = "cust-1"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	legacy := "42"
	require.NoError(t, store.UpsertProduct(ctx, core.Product{ID: "prod-rose", Slug: "rose-red", LegacyID: &legacy, Name: "Red Rose"}))
	require.NoError(t, store.UpsertProduct(ctx, core.Product{ID: "prod-tulip", Slug: "tulip-white", Name: "White Tulip"}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: variantRose60, ProductID: "prod-rose", Length: 60, Stock: 100, Price: decimal.NewFromInt(62)}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: variantRose70, ProductID: "prod-rose", Length: 70, Stock: 10, Price: decimal.NewFromInt(75)}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: variantTulip40, ProductID: "prod-tulip", Length: 40, Stock: 5, Price: decimal.NewFromInt(30)}))
	require.NoError(t, store.UpsertCustomer(ctx, core.Customer{ID: customerID, Name: "Flora Shop"}))
	return store
}

type services struct {
	ledger    *core.Ledger
	payments  core.PaymentService
	inventory core.InventoryService
}

func newServices(store core.Store, opts ...core.LedgerOption) services {
	logger := logging.Discard()
	inventory := core.NewInventoryService(store, logger)
	return services{
		ledger:    core.NewLedger(store, inventory, logger, opts...),
		payments:  core.NewPaymentService(store, logger),
		inventory: inventory,
	}
}

func stockOf(t *testing.T, store core.Store, variantID string) int {
	t.Helper()
	v, err := store.Variants().GetByID(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock
}

func customerOf(t *testing.T, store core.Store) *core.Customer {
	t.Helper()
	c, err := store.Customers().GetByID(context.Background(), customerID)
	require.NoError(t, err)
	return c
}

func requireCode(t *testing.T, err error, code string) *core.LedgerError {
	t.Helper()
	require.Error(t, err)
	le := core.AsLedgerError(err)
	require.Equal(t, code, le.Code, "error: %v", err)
	return le
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func item(key string, length, qty int, unitPrice int64) core.SaleItem {
	return core.SaleItem{VariantKey: key, Length: length, Quantity: qty, UnitPrice: price(unitPrice), Name: key}
}

func saleReq(opID string, items ...core.SaleItem) core.SaleRequest {
	return core.SaleRequest{OperationID: opID, CustomerID: customerID, Items: items}
}

func statusPtr(s core.PaymentStatus) *core.PaymentStatus { return &s }

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// ── Store decorators for fault injection ─────────────────────────────────────

// faultStore wraps a Store and lets a test intercept repository calls made inside a
// unit of work.
type faultStore struct {
	core.Store

	// adjustFault, when set, is consulted before every in-unit ConditionalAdjust (call is 1-based).
	adjustFault func(call int) error
	// insertFault, when set, replaces every in-unit Insert.
	insertFault error
	// hiddenLookups makes the next n FindByOperationID calls report not found.
	hiddenLookups atomic.Int32

	adjustCalls atomic.Int32
}

func (s *faultStore) Transactions() core.TransactionRepository {
	return faultTransactions{TransactionRepository: s.Store.Transactions(), s: s}
}

func (s *faultStore) Begin(ctx context.Context) (core.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultUnit{UnitOfWork: uow, s: s}, nil
}

type faultUnit struct {
	core.UnitOfWork
	s *faultStore
}

func (u *faultUnit) Variants() core.VariantRepository {
	return faultVariants{VariantRepository: u.UnitOfWork.Variants(), s: u.s}
}

func (u *faultUnit) Transactions() core.TransactionRepository {
	return faultTransactions{TransactionRepository: u.UnitOfWork.Transactions(), s: u.s, inUnit: true}
}

type faultVariants struct {
	core.VariantRepository
	s *faultStore
}

func (v faultVariants) ConditionalAdjust(ctx context.Context, id string, delta, minResulting int) (int, error) {
	call := int(v.s.adjustCalls.Add(1))
	if v.s.adjustFault != nil {
		if err := v.s.adjustFault(call); err != nil {
			return 0, err
		}
	}
	return v.VariantRepository.ConditionalAdjust(ctx, id, delta, minResulting)
}

type faultTransactions struct {
	core.TransactionRepository
	s      *faultStore
	inUnit bool
}

func (r faultTransactions) FindByOperationID(ctx context.Context, operationID string) (*core.Transaction, error) {
	if r.s.hiddenLookups.Load() > 0 {
		r.s.hiddenLookups.Add(-1)
		return nil, core.ErrNotFound
	}
	return r.TransactionRepository.FindByOperationID(ctx, operationID)
}

func (r faultTransactions) Insert(ctx context.Context, tx *core.Transaction) error {
	if r.inUnit && r.s.insertFault != nil {
		return r.s.insertFault
	}
	return r.TransactionRepository.Insert(ctx, tx)
}

// barrierStore holds every Begin until n callers have arrived, then lets all of them through.
// Later callers pass straight through.
type barrierStore struct {
	core.Store

	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newBarrierStore(store core.Store, n int) *barrierStore {
	return &barrierStore{Store: store, n: n, release: make(chan struct{})}
}

func (s *barrierStore) Begin(ctx context.Context) (core.UnitOfWork, error) {
	s.mu.Lock()
	s.arrived++
	if s.arrived == s.n {
		close(s.release)
	}
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.Begin(ctx)
}

// interleaveStore runs hook once, on the first store-level Variants call, so a test can commit
// another request between the idempotency fast path and stock resolution.
type interleaveStore struct {
	core.Store

	hook  func()
	fired atomic.Bool
}

func (s *interleaveStore) Variants() core.VariantRepository {
	if s.hook != nil && s.fired.CompareAndSwap(false, true) {
		s.hook()
	}
	return s.Store.Variants()
}
