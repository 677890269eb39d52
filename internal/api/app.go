// Package api is the HTTP surface: queries over REST, commands that do
// not need a live room (starting streams, buying tokens), and the
// websocket upgrade into the fan-out layer.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/darestream/darestream/internal/config"
	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/database"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/server"
	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/stream"
)

type DareStreamApp struct {
	log            *log.Logger
	registry       *stream.Registry
	queue          *dares.Queue
	ledger         *ledger.Ledger
	archive        database.ArchiveRepository
	payments       PaymentProcessor
	ss             *server.StreamServer
	stats          stats.StatsProvider
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewDareStreamApp(mux *http.ServeMux, logger *log.Logger, ss *server.StreamServer, registry *stream.Registry, queue *dares.Queue, l *ledger.Ledger, archive database.ArchiveRepository, payments PaymentProcessor, statsProvider stats.StatsProvider, cfg *config.Config) *DareStreamApp {
	s := &DareStreamApp{
		log:            logger,
		registry:       registry,
		queue:          queue,
		ledger:         l,
		archive:        archive,
		payments:       payments,
		ss:             ss,
		stats:          statsProvider,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/streams", s.listStreams)
	mux.HandleFunc("GET /api/streams/{id}", s.getStream)
	mux.HandleFunc("GET /api/streams/{id}/dares", s.listDares)
	mux.HandleFunc("GET /api/streams/{id}/goals", s.listGoals)
	mux.Handle("POST /api/streams", s.authMiddleware(s.startStream))
	mux.Handle("GET /api/streams/{id}/history", s.authMiddleware(s.sessionHistory))
	mux.HandleFunc("GET /api/dares/top", s.topDares)
	mux.Handle("POST /api/tokens/purchase", s.authMiddleware(s.purchaseTokens))
	mux.Handle("GET /api/balance", s.authMiddleware(s.balance))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *DareStreamApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *DareStreamApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
