package app

// ListTransactionsRequest carries raw filter values from an adapter. Empty strings and zero
// limits mean "no filter" and "default page size".
type ListTransactionsRequest struct {
	Kind          string
	PaymentStatus string
	CustomerID    string
	Limit         int
	Offset        int
}
