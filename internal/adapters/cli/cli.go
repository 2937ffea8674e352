// Package cli runs one-shot ledger commands for scripts and operators.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"flower-pos/internal/app"
	"flower-pos/internal/core"
)

const usage = `Usage: pos <command> [args]

  sale                      create a sale from a JSON SaleRequest on stdin
  writeoff                  create a write-off from a JSON WriteOffRequest on stdin
  confirm <transaction-id>  confirm payment of a pending or expected sale
  tx <transaction-id>       show one transaction
  list [kind] [status]      list recent transactions
  stock                     show stock levels
  adjust <operation-id> <variant-id> <delta>
                            apply an operator stock correction once per operation id`

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("invalid usage")

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stdout, usage)
		return ErrUsage
	}

	switch args[0] {
	case "sale":
		var req core.SaleRequest
		if err := json.NewDecoder(stdin).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		result, err := svc.CreateSale(ctx, req)
		if err != nil {
			return err
		}
		return encode(stdout, result)

	case "writeoff", "write-off":
		var req core.WriteOffRequest
		if err := json.NewDecoder(stdin).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		result, err := svc.CreateWriteOff(ctx, req)
		if err != nil {
			return err
		}
		return encode(stdout, result)

	case "confirm":
		if len(args) < 2 {
			return usageError(stdout, "confirm <transaction-id>")
		}
		result, err := svc.ConfirmPayment(ctx, args[1])
		if err != nil {
			return err
		}
		return encode(stdout, result)

	case "tx":
		if len(args) < 2 {
			return usageError(stdout, "tx <transaction-id>")
		}
		result, err := svc.GetTransaction(ctx, args[1])
		if err != nil {
			return err
		}
		return encode(stdout, result.Transaction)

	case "list", "ls":
		req := app.ListTransactionsRequest{}
		if len(args) > 1 {
			req.Kind = args[1]
		}
		if len(args) > 2 {
			req.PaymentStatus = args[2]
		}
		result, err := svc.ListTransactions(ctx, req)
		if err != nil {
			return err
		}
		PrintTransactions(stdout, result.Transactions)
		return nil

	case "stock":
		result, err := svc.GetStockLevels(ctx)
		if err != nil {
			return err
		}
		PrintStock(stdout, result.Variants)
		return nil

	case "adjust":
		if len(args) < 4 {
			return usageError(stdout, "adjust <operation-id> <variant-id> <delta>")
		}
		delta, err := strconv.Atoi(args[3])
		if err != nil {
			return usageError(stdout, "adjust <operation-id> <variant-id> <delta>: delta must be an integer")
		}
		result, err := svc.AdjustStock(ctx, core.AdjustStockRequest{OperationID: args[1], VariantID: args[2], Delta: delta})
		if err != nil {
			return err
		}
		return encode(stdout, core.AdjustStockResult{Adjustment: result.Adjustment, Idempotent: result.Idempotent})

	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n\n%s\n", args[0], usage)
		return ErrUsage
	}
}

func usageError(w io.Writer, msg string) error {
	fmt.Fprintln(w, "Usage: pos "+msg)
	return ErrUsage
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintStock renders variants as a fixed-width table.
func PrintStock(w io.Writer, variants []core.Variant) {
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-24s %-16s %6s %6s %8s\n", "PRODUCT", "VARIANT", "LENGTH", "STOCK", "PRICE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, v := range variants {
		fmt.Fprintf(w, "  %-24s %-16s %6d %6d %8s\n", truncate(v.ProductName, 24), truncate(v.ID, 16), v.Length, v.Stock, v.Price.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

// PrintTransactions renders a transaction list as a fixed-width table.
func PrintTransactions(w io.Writer, txs []core.Transaction) {
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-36s %-9s %-10s %10s  %s\n", "ID", "KIND", "STATUS", "AMOUNT", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, tx := range txs {
		fmt.Fprintf(w, "  %-36s %-9s %-10s %10s  %s\n", tx.ID, tx.Kind, tx.PaymentStatus, tx.Amount.StringFixed(2), tx.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %d transaction(s)\n", len(txs))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
