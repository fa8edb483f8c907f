package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/tokenbay/p2p-ledger/internal/ledger"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/pkg/api/docs"
	"github.com/tokenbay/p2p-ledger/pkg/config"
)

var _ = docs.SwaggerInfo

// Server is the read-only HTTP API over the derived ledger state.
type Server struct {
	config  *config.APIConfig
	handler *Handler
	log     *logger.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg *config.APIConfig, queries *ledger.Queries, status SyncStatus, log *logger.Logger) *Server {
	return &Server{
		config:  cfg,
		handler: NewHandler(queries, status, log),
		log:     log,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handler.Health)
	mux.HandleFunc("GET /api/v1/products", s.handler.ListProducts)
	mux.HandleFunc("GET /api/v1/products/{address}", s.handler.GetProduct)
	mux.HandleFunc("GET /api/v1/products/{address}/holders", s.handler.ListProductHolders)
	mux.HandleFunc("GET /api/v1/managers", s.handler.ListManagers)
	mux.HandleFunc("GET /api/v1/managers/{address}", s.handler.GetManager)
	mux.HandleFunc("GET /api/v1/managers/{address}/allocations", s.handler.ListManagerAllocations)
	mux.HandleFunc("GET /api/v1/managers/{address}/balances", s.handler.ListManagerBalances)
	mux.HandleFunc("GET /api/v1/transactions", s.handler.ListTransactions)
	mux.HandleFunc("GET /api/v1/stats", s.handler.GetStats)

	if s.config.EnableSwagger {
		mux.Handle("GET /swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	return mux
}

// Start runs the API server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API server is disabled")

		<-ctx.Done()

		return nil
	}

	var handler http.Handler = s.routes()

	handler = LoggingMiddleware(s.log)(handler)

	if s.config.EnableCORS {
		handler = CORSMiddleware([]string{"*"})(handler)
	}

	handler = RecoveryMiddleware(s.log)(handler)

	s.server = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout.Duration,
		WriteTimeout: s.config.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second, //nolint:mnd
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Infow("API server listening", "address", s.config.ListenAddress)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:mnd
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}

	s.log.Info("API server stopped")

	return nil
}
