package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-pos/internal/app"
	"flower-pos/internal/core"
	"flower-pos/internal/events"
	"flower-pos/internal/logging"
	"flower-pos/internal/metrics"
	"flower-pos/internal/store/sqlite"
)

func newTestService(t *testing.T) app.ApplicationService {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, core.Product{ID: "prod-iris", Slug: "iris-blue", Name: "Blue Iris"}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: "var-iris-40", ProductID: "prod-iris", Length: 40, Stock: 12, Price: decimal.NewFromInt(45)}))
	require.NoError(t, store.UpsertCustomer(ctx, core.Customer{ID: "cust-1", Name: "Stem & Co"}))

	logger := logging.Discard()
	inventory := core.NewInventoryService(store, logger)
	return app.NewAppService(
		core.NewLedger(store, inventory, logger),
		core.NewPaymentService(store, logger),
		inventory,
		metrics.New("cli_test"),
		events.NopPublisher{},
		logger,
	)
}

func run(t *testing.T, svc app.ApplicationService, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), svc, args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestSaleConfirmAndShow(t *testing.T) {
	svc := newTestService(t)

	out, err := run(t, svc, `{"operation_id":"cli-1","customer_id":"cust-1",
		"items":[{"variant_key":"iris-blue","length":40,"quantity":2,"unit_price":45,"name":"Blue Iris 40cm"}]}`, "sale")
	require.NoError(t, err)

	var result core.LedgerResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Transaction)
	assert.True(t, decimal.NewFromInt(90).Equal(result.Transaction.Amount))

	out, err = run(t, svc, "", "confirm", result.Transaction.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"payment_status": "paid"`)

	out, err = run(t, svc, "", "tx", result.Transaction.ID)
	require.NoError(t, err)
	assert.Contains(t, out, result.Transaction.ID)

	out, err = run(t, svc, "", "list", "sale")
	require.NoError(t, err)
	assert.Contains(t, out, result.Transaction.ID)
	assert.Contains(t, out, "1 transaction(s)")
}

func TestWriteOffStockAndAdjust(t *testing.T) {
	svc := newTestService(t)

	_, err := run(t, svc, `{"operation_id":"cli-wo","variant_key":"iris-blue","length":40,"quantity":2,"reason":"expiry"}`, "writeoff")
	require.NoError(t, err)

	out, err := run(t, svc, "", "adjust", "cli-adj", "var-iris-40", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"resulting_stock": 15`)
	assert.Contains(t, out, `"idempotent": false`)

	out, err = run(t, svc, "", "adjust", "cli-adj", "var-iris-40", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"resulting_stock": 15`)
	assert.Contains(t, out, `"idempotent": true`)

	out, err = run(t, svc, "", "stock")
	require.NoError(t, err)
	assert.Contains(t, out, "Blue Iris")
	assert.Contains(t, out, "45.00")
}

func TestUsageErrors(t *testing.T) {
	svc := newTestService(t)

	for _, args := range [][]string{{}, {"bogus"}, {"confirm"}, {"tx"}, {"adjust", "var-iris-40", "5"}, {"adjust", "cli-adj", "var-iris-40", "x"}} {
		_, err := run(t, svc, "", args...)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}

	_, err := run(t, svc, "not json", "sale")
	assert.Error(t, err)
}

func TestLedgerErrorsPassThrough(t *testing.T) {
	svc := newTestService(t)

	_, err := run(t, svc, "", "confirm", "missing")
	assert.Equal(t, core.CodeTransactionNotFound, core.ErrorCode(err))
}
