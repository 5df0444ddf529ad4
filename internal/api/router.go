package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/transactflow/internal/ratelimit"
)

type RouterConfig struct {
	Handler   *Handler
	Resolver  IdentityResolver
	Limiter   ratelimit.Limiter
	Admission AdmissionConfig
	Logger    *slog.Logger
	// Ready reports whether backing stores are reachable.
	Ready   func(ctx context.Context) error
	DevMode bool
}

// NewRouter wires the HTTP surface. Health and metrics sit outside
// admission control; everything under /api is throttled.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler

	r := mux.NewRouter()
	r.Use(Metrics)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", readyHandler(cfg.Ready)).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(Authenticate(cfg.Resolver))
	apiRouter.Use(Admission(cfg.Limiter, cfg.Admission, cfg.Logger))

	if cfg.DevMode {
		apiRouter.HandleFunc("/auth/token", h.DevTokenHandler).Methods(http.MethodPost)
	}

	txns := apiRouter.PathPrefix("/transactions").Subrouter()
	txns.Use(RequireIdentity)
	txns.HandleFunc("/transfer", h.CreateTransferHandler).Methods(http.MethodPost)
	txns.HandleFunc("/wallet", h.WalletBalanceHandler).Methods(http.MethodGet)
	txns.HandleFunc("/balance", h.WalletBalanceHandler).Methods(http.MethodGet)
	txns.HandleFunc("/history", h.HistoryHandler).Methods(http.MethodGet)
	txns.HandleFunc("/sent", h.SentHandler).Methods(http.MethodGet)
	txns.HandleFunc("/received", h.ReceivedHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return RequestLogger(cfg.Logger)(Recover(cfg.Logger)(r))
}

func readyHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			respondWithError(w, http.StatusServiceUnavailable, "NOT_READY", "Dependencies unavailable")
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
