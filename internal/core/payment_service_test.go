package core_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-pos/internal/core"
)

func TestConfirmPayment_PendingThenConfirmedCountsOnce(t *testing.T) {
	store := newTestStore(t)
	svc := newServices(store)
	ctx := context.Background()

	req := saleReq("op-pay", item("rose-red", 60, 4, 62), item("rose-red", 70, 2, 75))
	discount := decimal.NewFromInt(10)
	req.Discount = &discount
	sale, err := svc.ledger.CreateSale(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, customerOf(t, store).OrderCount)

	res, err := svc.payments.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.Equal(t, core.PaymentPaid, res.Transaction.PaymentStatus)
	require.NotNil(t, res.Transaction.PaidAt)

	c := customerOf(t, store)
	assert.Equal(t, 1, c.OrderCount)
	assert.True(t, decimal.NewFromInt(398).Equal(c.TotalSpent))

	again, err := svc.payments.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, again.Idempotent)

	c = customerOf(t, store)
	assert.Equal(t, 1, c.OrderCount)
	assert.True(t, decimal.NewFromInt(398).Equal(c.TotalSpent))

	stored, err := svc.ledger.GetTransaction(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaidAt)
}

func TestConfirmPayment_ExpectedIsPayable(t *testing.T) {
	store := newTestStore(t)
	svc := newServices(store)
	ctx := context.Background()

	req := saleReq("op-expected", item("tulip-white", 40, 1, 30))
	req.PaymentStatus = statusPtr(core.PaymentExpected)
	sale, err := svc.ledger.CreateSale(ctx, req)
	require.NoError(t, err)

	res, err := svc.payments.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, res.Transaction.PaymentStatus)
	assert.True(t, decimal.NewFromInt(30).Equal(customerOf(t, store).TotalSpent))
}

func TestConfirmPayment_CreatedPaidIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	svc := newServices(store)
	ctx := context.Background()

	req := saleReq("op-already-paid", item("rose-red", 60, 1, 62))
	req.PaymentStatus = statusPtr(core.PaymentPaid)
	sale, err := svc.ledger.CreateSale(ctx, req)
	require.NoError(t, err)

	res, err := svc.payments.ConfirmPayment(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, res.Idempotent)

	c := customerOf(t, store)
	assert.Equal(t, 1, c.OrderCount)
	assert.True(t, decimal.NewFromInt(62).Equal(c.TotalSpent))
}

func TestConfirmPayment_Rejections(t *testing.T) {
	store := newTestStore(t)
	svc := newServices(store)
	ctx := context.Background()

	_, err := svc.payments.ConfirmPayment(ctx, "")
	requireCode(t, err, core.CodeMissingTransactionID)

	_, err = svc.payments.ConfirmPayment(ctx, "missing")
	le := requireCode(t, err, core.CodeTransactionNotFound)
	assert.Equal(t, 404, le.HTTPStatus())

	wo, err := svc.ledger.CreateWriteOff(ctx, core.WriteOffRequest{
		OperationID: "op-wo", VariantKey: "rose-red", Length: 60, Quantity: 1, Reason: core.ReasonExpiry,
	})
	require.NoError(t, err)
	_, err = svc.payments.ConfirmPayment(ctx, wo.Transaction.ID)
	le = requireCode(t, err, core.CodeInvalidTransactionType)
	assert.Equal(t, 409, le.HTTPStatus())

	// Cancelled sales only arrive through the import side; they stay unpayable.
	cid := customerID
	cancelled := &core.Transaction{
		ID:            uuid.NewString(),
		Kind:          core.KindSale,
		OperationID:   "op-cancelled",
		PaymentStatus: core.PaymentCancelled,
		Amount:        decimal.NewFromInt(62),
		Items:         []core.LineItem{{VariantID: variantRose60, VariantKey: "rose-red", Length: 60, Quantity: 1, UnitPrice: decimal.NewFromInt(62), Name: "Red Rose"}},
		CustomerID:    &cid,
	}
	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Transactions().Insert(ctx, cancelled))
	require.NoError(t, uow.Commit(ctx))

	_, err = svc.payments.ConfirmPayment(ctx, cancelled.ID)
	requireCode(t, err, core.CodeInvalidPaymentTransition)
	assert.Zero(t, customerOf(t, store).OrderCount)
}

func TestConfirmPayment_ConcurrentConfirmationsCountOnce(t *testing.T) {
	store := newTestStore(t)
	svc := newServices(store)
	ctx := context.Background()

	sale, err := svc.ledger.CreateSale(ctx, saleReq("op-race-pay", item("rose-red", 60, 2, 62)))
	require.NoError(t, err)

	const n = 6
	results := make(chan *core.LedgerResult, n)
	errs := make(chan error, n)
	for range n {
		go func() {
			res, err := svc.payments.ConfirmPayment(ctx, sale.Transaction.ID)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}

	fresh := 0
	for range n {
		select {
		case err := <-errs:
			t.Fatalf("unexpected error: %v", err)
		case res := <-results:
			if !res.Idempotent {
				fresh++
			}
		}
	}
	assert.Equal(t, 1, fresh)

	c := customerOf(t, store)
	assert.Equal(t, 1, c.OrderCount)
	assert.True(t, decimal.NewFromInt(124).Equal(c.TotalSpent))
}
