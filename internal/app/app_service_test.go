package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-pos/internal/core"
	"flower-pos/internal/events"
	"flower-pos/internal/logging"
	"flower-pos/internal/metrics"
	"flower-pos/internal/store/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       ApplicationService
	store     *sqlite.Store
	metrics   *metrics.Metrics
	publisher *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, core.Product{ID: "prod-peony", Slug: "peony-pink", Name: "Pink Peony"}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: "var-peony-50", ProductID: "prod-peony", Length: 50, Stock: 20, Price: decimal.NewFromInt(90)}))
	require.NoError(t, store.UpsertCustomer(ctx, core.Customer{ID: "cust-9", Name: "Bloom Bar"}))

	logger := logging.Discard()
	inventory := core.NewInventoryService(store, logger)
	m := metrics.New("test")
	pub := &recordingPublisher{}
	svc := NewAppService(
		core.NewLedger(store, inventory, logger),
		core.NewPaymentService(store, logger),
		inventory,
		m,
		pub,
		logger,
	)
	return fixture{svc: svc, store: store, metrics: m, publisher: pub}
}

func peonySale(opID string, qty int) core.SaleRequest {
	p := decimal.NewFromInt(90)
	return core.SaleRequest{
		OperationID: opID,
		CustomerID:  "cust-9",
		Items:       []core.SaleItem{{VariantKey: "peony-pink", Length: 50, Quantity: qty, UnitPrice: &p, Name: "Pink Peony 50cm"}},
	}
}

func TestCreateSale_PublishesOnceAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateSale(ctx, peonySale("op-1", 3))
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	again, err := f.svc.CreateSale(ctx, peonySale("op-1", 3))
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)

	assert.Equal(t, []string{events.SaleCreated}, f.publisher.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerOperations.WithLabelValues(opCreateSale, metrics.OutcomeCreated, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerOperations.WithLabelValues(opCreateSale, metrics.OutcomeIdempotent, "")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.StockUnitsMoved.WithLabelValues(opCreateSale, "out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues(events.SaleCreated, "success")))
}

func TestCreateSale_RejectionCounted(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSale(context.Background(), peonySale("op-big", 21))
	require.Error(t, err)
	assert.Equal(t, core.CodeInsufficientStock, core.ErrorCode(err))

	assert.Empty(t, f.publisher.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.LedgerOperations.WithLabelValues(opCreateSale, metrics.OutcomeRejected, core.CodeInsufficientStock)))
}

func TestPublishFailure_DoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	result, err := f.svc.CreateSale(context.Background(), peonySale("op-2", 1))
	require.NoError(t, err)
	assert.False(t, result.Idempotent)

	v, err := f.store.Variants().GetByID(context.Background(), "var-peony-50")
	require.NoError(t, err)
	assert.Equal(t, 19, v.Stock)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues(events.SaleCreated, "error")))
}

func TestConfirmPayment_PublishesOnFirstConfirmationOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale, err := f.svc.CreateSale(ctx, peonySale("op-3", 2))
	require.NoError(t, err)

	paid, err := f.svc.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, paid.Transaction.PaymentStatus)

	again, err := f.svc.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, again.Idempotent)

	assert.Equal(t, []string{events.SaleCreated, events.PaymentConfirmed}, f.publisher.types())
}

func TestWriteOffAndAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wo, err := f.svc.CreateWriteOff(ctx, core.WriteOffRequest{
		OperationID: "op-wo", VariantKey: "peony-pink", Length: 50, Quantity: 4, Reason: core.ReasonDamage,
	})
	require.NoError(t, err)
	assert.Equal(t, core.KindWriteOff, wo.Transaction.Kind)

	adj, err := f.svc.AdjustStock(ctx, core.AdjustStockRequest{OperationID: "op-restock", VariantID: "var-peony-50", Delta: 10})
	require.NoError(t, err)
	assert.Equal(t, 26, adj.Adjustment.ResultingStock)
	assert.False(t, adj.Idempotent)

	again, err := f.svc.AdjustStock(ctx, core.AdjustStockRequest{OperationID: "op-restock", VariantID: "var-peony-50", Delta: 10})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, 26, again.Adjustment.ResultingStock)

	stock, err := f.svc.GetStockLevels(ctx)
	require.NoError(t, err)
	require.Len(t, stock.Variants, 1)
	assert.Equal(t, 26, stock.Variants[0].Stock)

	assert.Equal(t, []string{events.WriteOffCreated, events.StockAdjusted}, f.publisher.types())
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.StockUnitsMoved.WithLabelValues(opCreateWriteOff, "out")))
	assert.Equal(t, 10.0, testutil.ToFloat64(f.metrics.StockUnitsMoved.WithLabelValues(opAdjustStock, "in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerOperations.WithLabelValues(opAdjustStock, metrics.OutcomeIdempotent, "")))
}

func TestListTransactions_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSale(ctx, peonySale("op-a", 1))
	require.NoError(t, err)
	_, err = f.svc.CreateWriteOff(ctx, core.WriteOffRequest{
		OperationID: "op-b", VariantKey: "peony-pink", Length: 50, Quantity: 1, Reason: core.ReasonExpiry,
	})
	require.NoError(t, err)

	all, err := f.svc.ListTransactions(ctx, ListTransactionsRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Transactions, 2)

	sales, err := f.svc.ListTransactions(ctx, ListTransactionsRequest{Kind: "sale"})
	require.NoError(t, err)
	require.Len(t, sales.Transactions, 1)
	assert.Equal(t, core.KindSale, sales.Transactions[0].Kind)

	none, err := f.svc.ListTransactions(ctx, ListTransactionsRequest{PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.NotNil(t, none.Transactions)
	assert.Empty(t, none.Transactions)

	_, err = f.svc.ListTransactions(ctx, ListTransactionsRequest{Kind: "refund"})
	assert.Equal(t, core.CodeInvalidFilter, core.ErrorCode(err))
}

func TestGetTransaction_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetTransaction(context.Background(), "missing")
	assert.Equal(t, core.CodeTransactionNotFound, core.ErrorCode(err))
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name       string
		idempotent bool
		err        error
		outcome    string
		code       string
	}{
		{"created", false, nil, metrics.OutcomeCreated, ""},
		{"idempotent", true, nil, metrics.OutcomeIdempotent, ""},
		{"conflict", false, &core.LedgerError{Code: core.CodeConcurrentModification, Kind: core.KindConcurrency}, metrics.OutcomeConflict, core.CodeConcurrentModification},
		{"not found", false, &core.LedgerError{Code: core.CodeVariantNotFound, Kind: core.KindNotFound}, metrics.OutcomeRejected, core.CodeVariantNotFound},
		{"internal", false, errors.New("boom"), metrics.OutcomeError, core.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, code := outcomeOf(tt.idempotent, tt.err)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.code, code)
		})
	}
}
