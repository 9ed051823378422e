package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/boxoffice/ticket-system/orchestrator/application"
	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// TicketPurchaseHandlers contains the orchestrator HTTP handlers. The POST
// route triggers a purchase directly (operators and tests); the GET routes
// are the inspection surface for stuck instances and the audit log.
type TicketPurchaseHandlers struct {
	startTicketPurchase *application.StartTicketPurchase
	getTicketPurchase   *application.GetTicketPurchase
	getPurchaseEvents   *application.GetPurchaseEvents
	listEvents          *application.ListEvents
}

// NewTicketPurchaseHandlers creates new ticket purchase handlers
func NewTicketPurchaseHandlers(
	startTicketPurchase *application.StartTicketPurchase,
	getTicketPurchase *application.GetTicketPurchase,
	getPurchaseEvents *application.GetPurchaseEvents,
	listEvents *application.ListEvents,
) *TicketPurchaseHandlers {
	return &TicketPurchaseHandlers{
		startTicketPurchase: startTicketPurchase,
		getTicketPurchase:   getTicketPurchase,
		getPurchaseEvents:   getPurchaseEvents,
		listEvents:          listEvents,
	}
}

// StartPurchase handles purchase trigger requests
func (h *TicketPurchaseHandlers) StartPurchase(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartTicketPurchaseCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.startTicketPurchase.Execute(r.Context(), &cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// GetPurchase handles saga instance inspection requests
func (h *TicketPurchaseHandlers) GetPurchase(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationID")
	if correlationID == "" {
		http.Error(w, "Correlation ID is required", http.StatusBadRequest)
		return
	}

	query := &application.GetTicketPurchaseQuery{
		CorrelationID: correlationID,
	}

	response, err := h.getTicketPurchase.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetPurchaseEvents handles audit stream requests for one purchase
func (h *TicketPurchaseHandlers) GetPurchaseEvents(w http.ResponseWriter, r *http.Request) {
	query := &application.GetPurchaseEventsQuery{
		CorrelationID: chi.URLParam(r, "correlationID"),
	}

	stream, err := h.getPurchaseEvents.Execute(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stream)
}

// ListEvents handles paginated event listing by type
func (h *TicketPurchaseHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	query := &application.ListEventsQuery{
		EventType: r.URL.Query().Get("type"),
		Offset:    offset,
		Limit:     limit,
	}

	page, err := h.listEvents.Execute(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// RegisterRoutes registers purchase routes
func (h *TicketPurchaseHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.StartPurchase)
		r.Get("/{correlationID}", h.GetPurchase)
		r.Get("/{correlationID}/events", h.GetPurchaseEvents)
	})
	r.Get("/events", h.ListEvents)
}
