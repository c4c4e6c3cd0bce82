package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/coordinator"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// errorKind gives API consumers a stable discriminator alongside the
// HTTP status, so "ledger rejected" is distinguishable from "node down"
// without parsing messages.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "input_error"
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrNoHandle):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ledger.ErrWrongNetwork):
		return http.StatusPreconditionFailed, "wrong_network"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, ledger.ErrTransitionRejected):
		return http.StatusConflict, "transition_rejected"
	case errors.Is(err, ledger.ErrFinalityTimeout):
		return http.StatusGatewayTimeout, "finality_timeout"
	case errors.Is(err, ledger.ErrUnavailable):
		return http.StatusBadGateway, "availability_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(w http.ResponseWriter, err error) {
	status, kind := errorKind(err)
	respondJSON(w, status, map[string]string{"kind": kind, "error": err.Error()})
}

func shipmentID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	account, err := s.coord.Connect(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"account": account})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.coord.Disconnect()
	respondJSON(w, http.StatusOK, map[string]string{"message": "disconnected"})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.coord.ActiveAccount()
	respondJSON(w, http.StatusOK, map[string]any{"account": account, "connected": ok})
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.coord.Shipments())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.RefreshShipments(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.coord.Shipments())
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Receiver        string `json:"receiver"`
		Courier         string `json:"courier"`
		ScheduledPickup string `json:"scheduled_pickup"`
		Distance        uint64 `json:"distance"`
		Price           string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"kind": "input_error", "error": "invalid request body"})
		return
	}

	pickup, err := time.Parse(time.RFC3339, req.ScheduledPickup)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"kind": "input_error", "error": "invalid scheduled_pickup, use RFC3339"})
		return
	}

	id, err := s.coord.CreateShipment(r.Context(), coordinator.CreateRequest{
		Receiver:        req.Receiver,
		Courier:         req.Courier,
		ScheduledPickup: pickup,
		Distance:        req.Distance,
		Price:           req.Price,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]uint64{"shipment_id": id})
}

func (s *Server) handleShipmentDetails(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"kind": "input_error", "error": "invalid shipment id"})
		return
	}
	entry, err := s.coord.ShipmentDetails(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.coord.StartShipment, "shipment started")
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.coord.MarkDelivered, "shipment marked delivered")
}

func (s *Server) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.coord.ConfirmDelivery, "delivery confirmed, escrow released")
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uint64) error, message string) {
	id, err := shipmentID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"kind": "input_error", "error": "invalid shipment id"})
		return
	}
	if err := op(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleSenderShipments(w http.ResponseWriter, r *http.Request) {
	view, err := s.coord.SenderShipments(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
