// Package server exposes the capability surface the presentation layer
// consumes. It is the only way in: callers never talk to the ledger
// directly.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/coordinator"
)

type Coordinator interface {
	Connect(ctx context.Context) (string, error)
	Disconnect()
	ActiveAccount() (string, bool)
	Shipments() cache.Snapshot
	RefreshShipments(ctx context.Context) error
	CreateShipment(ctx context.Context, req coordinator.CreateRequest) (uint64, error)
	StartShipment(ctx context.Context, id uint64) error
	MarkDelivered(ctx context.Context, id uint64) error
	ConfirmDelivery(ctx context.Context, id uint64) error
	ShipmentDetails(ctx context.Context, id uint64) (cache.Entry, error)
	SenderShipments(ctx context.Context, sender string) (*coordinator.SenderView, error)
}

// AuthConfig guards the API with basic auth. An empty User disables it.
type AuthConfig struct {
	User         string
	PasswordHash string // bcrypt
}

type Server struct {
	coord  Coordinator
	auth   AuthConfig
	logger *zap.Logger
	server *http.Server
}

func New(coord Coordinator, auth AuthConfig, logger *zap.Logger) *Server {
	return &Server{coord: coord, auth: auth, logger: logger}
}

func (s *Server) Run(port string) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // mutating calls block on finality
	}

	s.logger.Info("server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.basicAuthMiddleware)

	api.HandleFunc("/wallet/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/wallet/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/wallet/account", s.handleAccount).Methods(http.MethodGet)

	api.HandleFunc("/shipments", s.handleListShipments).Methods(http.MethodGet)
	api.HandleFunc("/shipments", s.handleCreateShipment).Methods(http.MethodPost)
	api.HandleFunc("/shipments/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id:[0-9]+}", s.handleShipmentDetails).Methods(http.MethodGet)
	api.HandleFunc("/shipments/{id:[0-9]+}/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id:[0-9]+}/delivered", s.handleMarkDelivered).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id:[0-9]+}/confirm", s.handleConfirmDelivery).Methods(http.MethodPost)

	api.HandleFunc("/senders/{address}/shipments", s.handleSenderShipments).Methods(http.MethodGet)

	return router
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth.User == "" {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || username != s.auth.User ||
			bcrypt.CompareHashAndPassword([]byte(s.auth.PasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
