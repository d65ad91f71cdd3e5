// Package api exposes the quote store over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/graffic/clackquotes/internal/quotes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gateway is the part of quotes.Store the HTTP handlers use
type Gateway interface {
	CreateQuote(ctx context.Context, q quotes.NewQuote) (uuid.UUID, error)
	GetQuote(ctx context.Context, id string) (*quotes.Quote, error)
	GetRandomQuote(ctx context.Context) (*quotes.Quote, error)
	DeleteQuote(ctx context.Context, id string) error
	RecordMessage(ctx context.Context, messageID int64, quoteID string) error
	CastVote(ctx context.Context, b quotes.Ballot) (int, error)
}

// Pinger reports whether the database answers
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Gateway = (*quotes.Store)(nil)

// Options configures NewRouter
type Options struct {
	Logger *slog.Logger
	// Registry receives the request metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// NewRouter wires the quote routes, the health checks and /metrics
func NewRouter(gw Gateway, db Pinger, opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	h := NewHandler(gw, logger)
	metrics := NewMetrics(reg)

	r := mux.NewRouter()
	r.Use(WithLogging(logger), metrics.Middleware(), WithRecovery(logger))

	r.HandleFunc("/", h.Hello).Methods(http.MethodGet)
	r.HandleFunc("/addquote", h.AddQuote).Methods(http.MethodPost)
	r.HandleFunc("/delquote", h.DelQuote).Methods(http.MethodGet)
	r.HandleFunc("/getquote", h.GetQuote).Methods(http.MethodGet)
	r.HandleFunc("/addvotemessage", h.AddVoteMessage).Methods(http.MethodGet)
	r.HandleFunc("/vote", h.Vote).Methods(http.MethodPost)

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyzHandler(db, logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readyzHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", "error", err)
			JSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
