// Package api exposes a RAK811 module over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"i4.energy/across/rak811/at"
	"i4.energy/across/rak811/modem"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Modem *modem.Modem
	// Lock, when set, is held for every command issued on Modem.
	Lock sync.Locker
	// SendTimeout bounds a single uplink, zero selects modem.DefaultSendTimeout.
	SendTimeout time.Duration
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /uplink", s.handleUplink)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// statusCode maps a modem error onto the HTTP status reported to the client.
func statusCode(err error) int {
	switch {
	case errors.Is(err, modem.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, modem.ErrCommandPending):
		return http.StatusConflict
	case errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	}

	switch modem.ResultOf(err) {
	case at.ATResponseTimeout:
		return http.StatusGatewayTimeout
	case at.LoRaDeviceNotJoinedNetwork, at.LoRaBusy, at.LoRaDutyCycleRestricted,
		at.LoRaNoFreeChannelFound, at.LoRaNoValidChannelFound:
		return http.StatusServiceUnavailable
	case at.Undefined:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// handleUplink processes incoming HTTP POST requests to send an uplink
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	type UplinkRequest struct {
		Port    int    `json:"fPort"`
		Payload string `json:"payload"` // hex
	}

	var req UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Port == 0 || req.Payload == "" {
		s.sendError(w, "both 'fPort' and 'payload' fields are required", http.StatusBadRequest)
		return
	}

	timeout := s.SendTimeout
	if timeout <= 0 {
		timeout = modem.DefaultSendTimeout
	}

	if s.Lock != nil {
		s.Lock.Lock()
		defer s.Lock.Unlock()
	}

	if err := s.Modem.Send(r.Context(), req.Port, req.Payload, timeout); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"f_port": req.Port,
			"result": modem.ResultOf(err),
		}).Error("api: send uplink error")
		s.sendError(w, err.Error(), statusCode(err))
		return
	}

	log.WithFields(log.Fields{
		"f_port": req.Port,
		"length": len(req.Payload) / 2,
	}).Info("api: uplink sent")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
