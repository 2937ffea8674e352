package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"flower-pos/internal/app"
	"flower-pos/internal/core"
)

const idempotencyHeader = "Idempotency-Key"

type ledgerResponse struct {
	Success          bool                   `json:"success"`
	Idempotent       bool                   `json:"idempotent"`
	Data             *core.Transaction      `json:"data"`
	StockAdjustments []core.StockAdjustment `json:"stockAdjustments"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type listResponse struct {
	Success bool               `json:"success"`
	Data    []core.Transaction `json:"data"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// writeLedgerResult answers 201 for a fresh transaction and 200 for a replay.
func writeLedgerResult(w http.ResponseWriter, result *core.LedgerResult, createdStatus int) {
	status := createdStatus
	if result.Idempotent {
		status = http.StatusOK
	}
	adjustments := result.StockAdjustments
	if adjustments == nil {
		adjustments = []core.StockAdjustment{}
	}
	writeJSON(w, status, ledgerResponse{
		Success:          true,
		Idempotent:       result.Idempotent,
		Data:             result.Transaction,
		StockAdjustments: adjustments,
	})
}

// operationID reconciles the body field with the Idempotency-Key header. Either may carry
// the key; when both are present they must agree.
func operationID(r *http.Request, body string) (string, bool) {
	header := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case header == "":
		return body, true
	case body == "" || body == header:
		return header, true
	default:
		return "", false
	}
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req core.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opID, ok := operationID(r, req.OperationID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "OPERATION_ID_MISMATCH", "Idempotency-Key header and operation_id differ", nil)
		return
	}
	req.OperationID = opID

	result, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLedgerResult(w, result, http.StatusCreated)
}

func (h *Handler) createWriteOff(w http.ResponseWriter, r *http.Request) {
	var req core.WriteOffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opID, ok := operationID(r, req.OperationID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "OPERATION_ID_MISMATCH", "Idempotency-Key header and operation_id differ", nil)
		return
	}
	req.OperationID = opID

	result, err := h.svc.CreateWriteOff(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLedgerResult(w, result, http.StatusCreated)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ConfirmPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLedgerResult(w, result, http.StatusOK)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: result.Transaction})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, core.CodeInvalidFilter, "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, core.CodeInvalidFilter, "offset must be an integer", nil)
		return
	}

	result, err := h.svc.ListTransactions(r.Context(), app.ListTransactionsRequest{
		Kind:          q.Get("kind"),
		PaymentStatus: q.Get("status"),
		CustomerID:    q.Get("customer_id"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    result.Transactions,
		Limit:   result.Limit,
		Offset:  result.Offset,
	})
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
