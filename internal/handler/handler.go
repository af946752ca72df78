// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/service"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

// EventHandler holds all HTTP handlers for the ticketing API.
type EventHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewEventHandler(svc *service.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// NewRouter builds the full HTTP surface. metrics may be nil.
func NewRouter(h *EventHandler, logger *slog.Logger, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Get("/wallet", h.Wallet)
	r.Delete("/wallet", h.DisconnectWallet)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/book", h.Book)
		r.Post("/{id}/checkin", h.CheckIn)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/withdraw", h.Withdraw)
		r.Post("/{id}/checkin-link", h.ShowCheckIn)
	})

	r.Get("/checkin", h.CheckInView)
	r.Post("/checkin", h.CheckInAction)

	r.Get("/tx", h.TxStatuses)
	r.Get("/tx/*", h.TxStatus)
	r.Get("/notifications", h.Notifications)

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// eventID parses the {id} URL parameter. Event ids start at 0.
func eventID(r *http.Request) (uint64, bool) {
	return checkin.ParseEventID(chi.URLParam(r, "id"))
}

// writeServiceError maps service errors to HTTP statuses.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidLink):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWalletNotConnected),
		errors.Is(err, service.ErrNotOrganizer),
		errors.Is(err, service.ErrNoSession),
		errors.Is(err, service.ErrEventCancelled),
		errors.Is(err, service.ErrAlreadyBooked),
		errors.Is(err, service.ErrEventFull),
		errors.Is(err, service.ErrNotBooked),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, service.ErrScanReadOnly),
		errors.Is(err, txstatus.ErrSlotBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "chain read timed out")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusBadGateway, "chain request failed")
	}
}

// ─── Reads ────────────────────────────────────────────────────────────────────

// Wallet handles GET /wallet
func (h *EventHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Wallet(r.Context()))
}

// DisconnectWallet handles DELETE /wallet
func (h *EventHandler) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Disconnect(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListEvents handles GET /events
// Returns the latest directory snapshot; it never blocks on the chain.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListEvents())
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	item, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ─── Writes ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tx, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

// eventCommand adapts a per-event service write to a handler.
func (h *EventHandler) eventCommand(fn func(ctx context.Context, id uint64) (service.TxView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := eventID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid event id")
			return
		}
		tx, err := fn(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
	}
}

// Book handles POST /events/{id}/book
func (h *EventHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.eventCommand(h.svc.Book)(w, r)
}

// CheckIn handles POST /events/{id}/checkin
func (h *EventHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.eventCommand(h.svc.CheckIn)(w, r)
}

// Cancel handles POST /events/{id}/cancel
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.eventCommand(h.svc.Cancel)(w, r)
}

// Withdraw handles POST /events/{id}/withdraw
func (h *EventHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.eventCommand(h.svc.Withdraw)(w, r)
}

// ─── Check-in ─────────────────────────────────────────────────────────────────

// ShowCheckIn handles POST /events/{id}/checkin-link
// Remembers the event for check-in and returns its deep links.
func (h *EventHandler) ShowCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	link, err := h.svc.ShowCheckIn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// CheckInView handles GET /checkin?eventId=N[&attendee=0x…]
// Problems with the link are part of the view, so this always returns 200.
func (h *EventHandler) CheckInView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CheckInView(r.Context(), r.URL.Query()))
}

// CheckInAction handles POST /checkin?eventId=N[&attendee=0x…]
func (h *EventHandler) CheckInAction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.CheckInAction(r.Context(), r.URL.Query())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

// ─── Transactions ─────────────────────────────────────────────────────────────

// TxStatus handles GET /tx/{slot...}, e.g. /tx/book/3.
func (h *EventHandler) TxStatus(w http.ResponseWriter, r *http.Request) {
	slot := strings.Trim(chi.URLParam(r, "*"), "/")
	if slot == "" {
		writeError(w, http.StatusBadRequest, "slot is required")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TxStatus(slot))
}

// TxStatuses handles GET /tx
func (h *EventHandler) TxStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.TxStatuses())
}

// Notifications handles GET /notifications?limit=N
func (h *EventHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	ns, err := h.svc.Notifications(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
