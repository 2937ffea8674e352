package repl

import (
	"bufio"
	"bytes"
	"context"
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

func newTill(t *testing.T) (app.ApplicationService, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, core.Product{ID: "prod-rose", Slug: "rose-red", Name: "Red Rose"}))
	require.NoError(t, store.UpsertVariant(ctx, core.Variant{ID: "var-rose-60", ProductID: "prod-rose", Length: 60, Stock: 30, Price: decimal.NewFromInt(62)}))
	require.NoError(t, store.UpsertCustomer(ctx, core.Customer{ID: "cust-1", Name: "Flora Shop"}))

	logger := logging.Discard()
	inventory := core.NewInventoryService(store, logger)
	svc := app.NewAppService(
		core.NewLedger(store, inventory, logger),
		core.NewPaymentService(store, logger),
		inventory,
		metrics.New("repl_test"),
		events.NopPublisher{},
		logger,
	)
	return svc, store
}

func runScript(svc app.ApplicationService, lines ...string) string {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	Run(context.Background(), svc, reader, &out)
	return out.String()
}

func stock(t *testing.T, store *sqlite.Store) int {
	t.Helper()
	v, err := store.Variants().GetByID(context.Background(), "var-rose-60")
	require.NoError(t, err)
	return v.Stock
}

func TestCheckout_UsesListPriceAndClearsCart(t *testing.T) {
	svc, store := newTill(t)

	out := runScript(svc,
		"/add rose-red 60 3",
		"/checkout cust-1 6 paid",
		"y",
		"/cart",
		"/exit",
	)

	assert.Contains(t, out, "Added 3 × Red Rose 60cm @ 62.00")
	assert.Contains(t, out, "STATUS:      paid")
	assert.Contains(t, out, "AMOUNT:      180.00")
	assert.Contains(t, out, "Cart is empty.")
	assert.Contains(t, out, "Goodbye!")
	assert.Equal(t, 27, stock(t, store))

	c, err := store.Customers().GetByID(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.OrderCount)
}

func TestCheckout_DeclinedKeepsCart(t *testing.T) {
	svc, store := newTill(t)

	out := runScript(svc,
		"/add rose-red 60 2 50",
		"/checkout cust-1",
		"n",
		"/cart",
	)

	assert.Contains(t, out, "Checkout cancelled. Cart kept.")
	assert.Contains(t, out, "100.00")
	assert.Equal(t, 30, stock(t, store))
}

func TestCheckout_ErrorShowsCode(t *testing.T) {
	svc, store := newTill(t)

	out := runScript(svc,
		"/add rose-red 60 31 62",
		"/checkout cust-1",
		"y",
		"/add tulip 40 1",
		"/add rose-red abc 1",
	)

	assert.Contains(t, out, "Error [INSUFFICIENT_STOCK]")
	assert.Contains(t, out, "no variant tulip at 40cm")
	assert.Contains(t, out, "Error: invalid length: abc")
	assert.Equal(t, 30, stock(t, store))
}

func TestWriteOffAndRecent(t *testing.T) {
	svc, store := newTill(t)

	out := runScript(svc,
		"/writeoff rose-red 60 4 damage",
		"/recent",
		"/stock",
		"/bogus",
	)

	assert.Contains(t, out, "KIND:        writeOff")
	assert.Contains(t, out, "REASON:      damage")
	assert.Contains(t, out, "writeOff")
	assert.Contains(t, out, "Red Rose")
	assert.Contains(t, out, "Unknown command: /bogus")
	assert.Equal(t, 26, stock(t, store))
}

func TestCart_OperationIDStableUntilCleared(t *testing.T) {
	var c cart
	price := decimal.NewFromInt(10)
	c.add(core.SaleItem{VariantKey: "a", Length: 1, Quantity: 1, UnitPrice: &price, Name: "a"})
	first := c.operationID
	require.NotEmpty(t, first)

	c.add(core.SaleItem{VariantKey: "b", Length: 1, Quantity: 2, UnitPrice: &price, Name: "b"})
	assert.Equal(t, first, c.operationID)
	assert.True(t, decimal.NewFromInt(30).Equal(c.subtotal()))

	c.clear()
	assert.Empty(t, c.operationID)
	c.add(core.SaleItem{VariantKey: "a", Length: 1, Quantity: 1, UnitPrice: &price, Name: "a"})
	assert.NotEqual(t, first, c.operationID)
}
