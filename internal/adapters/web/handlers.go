package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flower-pos/internal/app"
	"flower-pos/internal/metrics"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins   string
	RequestBodyLimit int64
}

// Handler serves the routes backed by the ApplicationService.
type Handler struct {
	svc app.ApplicationService
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, m *metrics.Metrics, logger *slog.Logger, opts Options) http.Handler {
	if opts.RequestBodyLimit <= 0 {
		opts.RequestBodyLimit = 1 << 20
	}
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(Metrics(m))

	r.Get("/api/health", h.health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(opts.RequestBodyLimit))

		// ── Ledger ───────────────────────────────────────────────────────────
		r.Post("/api/sales", h.createSale)
		r.Post("/api/write-offs", h.createWriteOff)
		r.Get("/api/transactions", h.listTransactions)
		r.Get("/api/transactions/{id}", h.getTransaction)
		r.Post("/api/transactions/{id}/confirm-payment", h.confirmPayment)

		// ── Inventory ────────────────────────────────────────────────────────
		r.Get("/api/variants", h.listVariants)
		r.Post("/api/variants/{id}/adjust", h.adjustStock)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}
