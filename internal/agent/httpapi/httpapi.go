// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package httpapi exposes a read-only status surface for the agent.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus"
	"github.com/ccheshirecat/usbvlan/internal/agent/events"
	"github.com/ccheshirecat/usbvlan/internal/agent/history"
	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
)

const maxEventsLimit = 1000

// StatusSource reports the current provisioner state.
type StatusSource interface {
	Status() provisioner.Status
}

// Handler wires HTTP endpoints for agent status and history.
type Handler struct {
	status  StatusSource
	history history.Store
	bus     eventbus.Bus
	logger  *slog.Logger
}

// New constructs a router backed by the provided sources.
func New(status StatusSource, store history.Store, bus eventbus.Bus, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{status: status, history: store, bus: bus, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/events", h.handleEvents)
		r.Get("/events/stream", h.handleStream)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status())
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxEventsLimit)
	}
	items, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []events.AgentEvent{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := (&websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}).Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("events ws upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventsCh := make(chan any, 16)
	unsubscribe, err := h.bus.Subscribe(events.TopicAgentEvents, eventsCh)
	if err != nil {
		h.logger.Error("events ws subscribe", "error", err)
		return
	}
	defer unsubscribe()

	// Reads only to notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-eventsCh:
			ev, ok := payload.(events.AgentEvent)
			if !ok {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
