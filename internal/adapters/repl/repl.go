// Package repl is an interactive till console. It keeps a cart in memory and records it as one
// sale on checkout.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flower-pos/internal/app"
	"flower-pos/internal/core"
)

var errExit = errors.New("exit")

// cart accumulates lines until checkout. operationID is minted with the first line and kept
// until the sale is recorded, so a retried checkout after an error cannot sell twice.
type cart struct {
	operationID string
	items       []core.SaleItem
}

func (c *cart) add(it core.SaleItem) {
	if c.operationID == "" {
		c.operationID = uuid.NewString()
	}
	c.items = append(c.items, it)
}

func (c *cart) clear() {
	c.operationID = ""
	c.items = nil
}

func (c *cart) subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type session struct {
	ctx    context.Context
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
	cart   cart
}

// Run starts the interactive loop. It returns when the reader is exhausted or the user exits.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	s := &session{ctx: ctx, svc: svc, reader: reader, out: out}

	fmt.Fprintln(out, "Flower POS till")
	fmt.Fprintln(out, "Build a cart with /add, then /checkout. Type /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if err := s.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				printError(out, err)
			}
		}
		if readErr != nil {
			return
		}
	}
}

func (s *session) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "stock":
		result, err := s.svc.GetStockLevels(s.ctx)
		if err != nil {
			return err
		}
		printStock(s.out, result.Variants)

	case "add":
		// /add <product-key> <length> <qty> [unit-price]
		if len(args) < 3 {
			fmt.Fprintln(s.out, "Usage: /add <product-key> <length> <qty> [unit-price]")
			return nil
		}
		return s.addLine(args)

	case "cart":
		printCart(s.out, &s.cart)

	case "clear":
		s.cart.clear()
		fmt.Fprintln(s.out, "Cart cleared.")

	case "checkout":
		// /checkout <customer-id> [discount] [pending|paid|expected]
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /checkout <customer-id> [discount] [pending|paid|expected]")
			return nil
		}
		return s.checkout(args)

	case "writeoff":
		// /writeoff <product-key> <length> <qty> <reason>
		if len(args) < 4 {
			fmt.Fprintln(s.out, "Usage: /writeoff <product-key> <length> <qty> <damage|expiry|adjustment|other>")
			return nil
		}
		length, qty, err := parseLengthQty(args[1], args[2])
		if err != nil {
			return err
		}
		result, err := s.svc.CreateWriteOff(s.ctx, core.WriteOffRequest{
			OperationID: uuid.NewString(),
			VariantKey:  args[0],
			Length:      length,
			Quantity:    qty,
			Reason:      core.WriteOffReason(strings.ToLower(args[3])),
		})
		if err != nil {
			return err
		}
		printResult(s.out, result)

	case "confirm":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /confirm <transaction-id>")
			return nil
		}
		result, err := s.svc.ConfirmPayment(s.ctx, args[0])
		if err != nil {
			return err
		}
		printResult(s.out, result)

	case "tx":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /tx <transaction-id>")
			return nil
		}
		result, err := s.svc.GetTransaction(s.ctx, args[0])
		if err != nil {
			return err
		}
		printTransaction(s.out, result.Transaction)

	case "recent":
		result, err := s.svc.ListTransactions(s.ctx, app.ListTransactionsRequest{Limit: 10})
		if err != nil {
			return err
		}
		printTransactions(s.out, result.Transactions)

	case "help", "h":
		printHelp(s.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

func (s *session) addLine(args []string) error {
	length, qty, err := parseLengthQty(args[1], args[2])
	if err != nil {
		return err
	}

	var (
		price decimal.Decimal
		name  = fmt.Sprintf("%s %dcm", args[0], length)
	)
	if len(args) >= 4 {
		price, err = decimal.NewFromString(args[3])
		if err != nil || price.IsNegative() {
			return fmt.Errorf("invalid unit price: %s", args[3])
		}
	} else {
		v, err := s.lookupVariant(args[0], length)
		if err != nil {
			return err
		}
		price = v.Price
		name = fmt.Sprintf("%s %dcm", v.ProductName, length)
	}

	s.cart.add(core.SaleItem{VariantKey: args[0], Length: length, Quantity: qty, UnitPrice: &price, Name: name})
	fmt.Fprintf(s.out, "Added %d × %s @ %s. Cart subtotal: %s\n", qty, name, price.StringFixed(2), s.cart.subtotal().StringFixed(2))
	return nil
}

// lookupVariant finds the list price by product slug and length.
func (s *session) lookupVariant(productKey string, length int) (*core.Variant, error) {
	result, err := s.svc.GetStockLevels(s.ctx)
	if err != nil {
		return nil, err
	}
	for i, v := range result.Variants {
		if v.ProductSlug == productKey && v.Length == length {
			return &result.Variants[i], nil
		}
	}
	return nil, fmt.Errorf("no variant %s at %dcm; pass the unit price explicitly", productKey, length)
}

func (s *session) checkout(args []string) error {
	if len(s.cart.items) == 0 {
		fmt.Fprintln(s.out, "Cart is empty.")
		return nil
	}

	req := core.SaleRequest{
		OperationID: s.cart.operationID,
		CustomerID:  args[0],
		Items:       s.cart.items,
	}
	if len(args) >= 2 {
		discount, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid discount: %s", args[1])
		}
		req.Discount = &discount
	}
	if len(args) >= 3 {
		status := core.PaymentStatus(strings.ToLower(args[2]))
		req.PaymentStatus = &status
	}

	printCart(s.out, &s.cart)
	fmt.Fprint(s.out, "\nRecord this sale? (y/n): ")
	choice, _ := s.reader.ReadString('\n')
	choice = strings.TrimSpace(strings.ToLower(choice))
	if choice != "y" && choice != "yes" {
		fmt.Fprintln(s.out, "Checkout cancelled. Cart kept.")
		return nil
	}

	result, err := s.svc.CreateSale(s.ctx, req)
	if err != nil {
		return err
	}
	s.cart.clear()
	printResult(s.out, result)
	return nil
}

func parseLengthQty(lengthArg, qtyArg string) (int, int, error) {
	length, err := strconv.Atoi(lengthArg)
	if err != nil || length <= 0 {
		return 0, 0, fmt.Errorf("invalid length: %s", lengthArg)
	}
	qty, err := strconv.Atoi(qtyArg)
	if err != nil || qty <= 0 {
		return 0, 0, fmt.Errorf("invalid quantity: %s", qtyArg)
	}
	return length, qty, nil
}
