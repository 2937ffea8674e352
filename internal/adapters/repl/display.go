package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"flower-pos/internal/core"
)

func printStock(w io.Writer, variants []core.Variant) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-24s %-14s %6s %6s %8s\n", "PRODUCT", "KEY", "LENGTH", "STOCK", "PRICE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	if len(variants) == 0 {
		fmt.Fprintln(w, "  No variants found.")
	}
	for _, v := range variants {
		fmt.Fprintf(w, "  %-24s %-14s %6d %6d %8s\n", v.ProductName, v.ProductSlug, v.Length, v.Stock, v.Price.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printCart(w io.Writer, c *cart) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-30s %5s %10s %12s\n", "ITEM", "QTY", "PRICE", "LINE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	if len(c.items) == 0 {
		fmt.Fprintln(w, "  Cart is empty.")
	}
	for _, it := range c.items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(w, "  %-30s %5d %10s %12s\n", it.Name, it.Quantity, it.UnitPrice.StringFixed(2), line.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 62))
	fmt.Fprintf(w, "  %-30s %29s\n", "SUBTOTAL", c.subtotal().StringFixed(2))
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printResult(w io.Writer, r *core.LedgerResult) {
	if r.Idempotent {
		fmt.Fprintln(w, "Already recorded; showing the original transaction.")
	}
	printTransaction(w, r.Transaction)
	for _, a := range r.StockAdjustments {
		fmt.Fprintf(w, "  stock %s %dcm: %+d → %d\n", a.VariantKey, a.Length, a.Delta, a.ResultingStock)
	}
}

func printTransaction(w io.Writer, tx *core.Transaction) {
	fmt.Fprintf(w, "\nTRANSACTION: %s\n", tx.ID)
	fmt.Fprintf(w, "KIND:        %s\n", tx.Kind)
	fmt.Fprintf(w, "STATUS:      %s\n", tx.PaymentStatus)
	fmt.Fprintf(w, "AMOUNT:      %s (discount %s)\n", tx.Amount.StringFixed(2), tx.Discount.StringFixed(2))
	if tx.CustomerID != nil {
		fmt.Fprintf(w, "CUSTOMER:    %s\n", *tx.CustomerID)
	}
	if tx.WriteOffReason != nil {
		fmt.Fprintf(w, "REASON:      %s\n", *tx.WriteOffReason)
	}
	fmt.Fprintf(w, "CREATED:     %s\n", tx.CreatedAt.Format("2006-01-02 15:04:05"))
	if tx.PaidAt != nil {
		fmt.Fprintf(w, "PAID:        %s\n", tx.PaidAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w, "ITEMS:")
	for _, it := range tx.Items {
		fmt.Fprintf(w, "  %3d × %-30s @ %s\n", it.Quantity, it.Name, it.UnitPrice.StringFixed(2))
	}
}

func printTransactions(w io.Writer, txs []core.Transaction) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-36s %-9s %-10s %10s  %s\n", "ID", "KIND", "STATUS", "AMOUNT", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	if len(txs) == 0 {
		fmt.Fprintln(w, "  No transactions yet.")
	}
	for _, tx := range txs {
		fmt.Fprintf(w, "  %-36s %-9s %-10s %10s  %s\n", tx.ID, tx.Kind, tx.PaymentStatus, tx.Amount.StringFixed(2), tx.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

// printError shows the stable code for ledger errors so operators can look it up.
func printError(w io.Writer, err error) {
	var le *core.LedgerError
	if !errors.As(err, &le) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", le.Code, le.Message)
	if le.Retryable() {
		fmt.Fprintln(w, "Stock changed while recording. Check /stock and run /checkout again.")
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FLOWER POS — COMMANDS")
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  CART")
	fmt.Fprintln(w, "  /add <product> <length> <qty> [price]   Add a line (list price if omitted)")
	fmt.Fprintln(w, "  /cart                                   Show the cart")
	fmt.Fprintln(w, "  /clear                                  Empty the cart")
	fmt.Fprintln(w, "  /checkout <customer> [discount] [status] Record the cart as one sale")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  LEDGER")
	fmt.Fprintln(w, "  /confirm <transaction-id>               Confirm payment")
	fmt.Fprintln(w, "  /tx <transaction-id>                    Show a transaction")
	fmt.Fprintln(w, "  /recent                                 Last 10 transactions")
	fmt.Fprintln(w, "  /writeoff <product> <length> <qty> <reason>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  INVENTORY")
	fmt.Fprintln(w, "  /stock                                  Stock levels")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  SESSION")
	fmt.Fprintln(w, "  /help                                   Show this help")
	fmt.Fprintln(w, "  /exit                                   Exit")
	fmt.Fprintln(w)
}
