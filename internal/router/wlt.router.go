package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	hrest "wallet-service/internal/handler/rest"
)

func SetupRoutes(r chi.Router, h *hrest.WalletRestHandler) chi.Router {
	// ---- Global Middleware ----
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false, // must be false when using "*"
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Post("/credit", h.Credit)
		r.Post("/debit", h.Debit)
		r.Get("/{userID}/balance", h.GetBalance)
		r.Get("/{userID}/ledger", h.ListLedger)
		r.Get("/{userID}/reconcile", h.Reconcile)

		r.Post("/withdrawals", h.RequestWithdrawal)
		r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
		r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/{id}/pay", h.PayOrder)
	})

	// Operator surface.
	r.Route("/outbox", func(r chi.Router) {
		r.Post("/{id}/resubmit", h.ResubmitOutboxEvent)
	})
	r.Route("/commissions", func(r chi.Router) {
		r.Post("/distribute", h.DistributeCommissions)
	})

	return r
}
