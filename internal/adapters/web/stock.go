package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"flower-pos/internal/core"
)

func (h *Handler) listVariants(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: result.Variants})
}

type adjustmentResponse struct {
	Success    bool                  `json:"success"`
	Idempotent bool                  `json:"idempotent"`
	Data       *core.StockAdjustment `json:"data"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OperationID string `json:"operation_id"`
		Delta       int    `json:"delta"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	opID, ok := operationID(r, body.OperationID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "OPERATION_ID_MISMATCH", "Idempotency-Key header and operation_id differ", nil)
		return
	}

	result, err := h.svc.AdjustStock(r.Context(), core.AdjustStockRequest{
		OperationID: opID,
		VariantID:   chi.URLParam(r, "id"),
		Delta:       body.Delta,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustmentResponse{Success: true, Idempotent: result.Idempotent, Data: result.Adjustment})
}
