// Package api serves read-only queries over the CDA warehouse.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/db"
	"github.com/sells-group/cda-warehouse/internal/model"
	"github.com/sells-group/cda-warehouse/internal/report"
	"github.com/sells-group/cda-warehouse/internal/store"
)

// SaldoSource provides the fact balances the percentile report is built from.
type SaldoSource interface {
	SaldosPorNatureza(ctx context.Context) ([]model.SaldoNatureza, error)
}

// Server answers warehouse queries over HTTP.
type Server struct {
	pool    db.Pool
	saldos  SaldoSource
	buckets []report.Bucket
	now     func() time.Time
	log     *zap.Logger
}

// New builds a Server over a Postgres pool. Empty buckets fall back to
// report.DefaultBuckets.
func New(pool db.Pool, buckets []report.Bucket) *Server {
	if len(buckets) == 0 {
		buckets = report.DefaultBuckets
	}
	return &Server{
		pool:    pool,
		saldos:  store.NewPostgresFromPool(pool),
		buckets: buckets,
		now:     time.Now,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/cda", func(r chi.Router) {
		r.Get("/search", s.searchCdas)
		r.Get("/detalhes_devedor", s.detalhesDevedor)
	})

	r.Route("/resumo", func(r chi.Router) {
		r.Get("/distribuicao_cdas", s.distribuicaoCdas)
		r.Get("/inscricoes", s.inscricoes)
		r.Get("/quantidade_cdas", s.quantidadeCdas)
		r.Get("/saldo_cdas", s.saldoCdas)
		r.Get("/montante_acumulado", s.montanteAcumulado)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// queryFailed logs a database error and answers 500 without leaking it.
func (s *Server) queryFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("query failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeDetail(w, http.StatusInternalServerError, "database query failed")
}
