package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/portal-mailer/internal/delivery"
	"github.com/ignite/portal-mailer/internal/template"
)

// SendMessage renders a template for one recipient and dispatches it.
// The response always carries the delivery log row; a render or transport
// failure shows up there as a failed status, not as an HTTP error.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID     uuid.UUID         `json:"template_id"`
		RecipientEmail string            `json:"recipient_email"`
		Variables      map[string]string `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TemplateID == uuid.Nil || req.RecipientEmail == "" {
		respondError(w, http.StatusBadRequest, "template_id and recipient_email are required")
		return
	}

	entry, err := h.dispatcher.SendSingle(r.Context(), req.TemplateID, req.RecipientEmail, req.Variables)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// SendCustomMessage dispatches an ad hoc message with a literal subject
// and body, bypassing the template store.
func (h *Handlers) SendCustomMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientEmail string `json:"recipient_email"`
		Subject        string `json:"subject"`
		Body           string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecipientEmail == "" || req.Subject == "" {
		respondError(w, http.StatusBadRequest, "recipient_email and subject are required")
		return
	}

	entry, err := h.dispatcher.SendCustom(r.Context(), req.RecipientEmail, req.Subject, req.Body)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// SendBulk dispatches one template to a list of recipients under a fresh
// campaign id. The call blocks until every recipient has an outcome.
func (h *Handlers) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID   uuid.UUID            `json:"template_id"`
		CampaignName string               `json:"campaign_name"`
		Recipients   []delivery.Recipient `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TemplateID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	result, err := h.dispatcher.SendBulk(r.Context(), req.TemplateID, req.Recipients, req.CampaignName)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ReceiveEvent ingests one provider callback and advances the matching
// delivery log row. Duplicate and stale callbacks are acknowledged without
// effect; contradictory ones are rejected with 409.
func (h *Handlers) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogID      uuid.UUID `json:"log_id"`
		Event      string    `json:"event"`
		OccurredAt time.Time `json:"occurred_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LogID == uuid.Nil || req.Event == "" {
		respondError(w, http.StatusBadRequest, "log_id and event are required")
		return
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = time.Now()
	}

	if err := h.tracker.ApplyEvent(r.Context(), req.LogID, req.Event, req.OccurredAt); err != nil {
		respondDeliveryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// GetDelivery returns one delivery log row.
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "logId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	entry, err := h.deliveries.Get(r.Context(), id)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// ListRecentDeliveries returns the newest delivery log rows.
func (h *Handlers) ListRecentDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	entries, err := h.deliveries.ListRecent(r.Context(), limit)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	if entries == nil {
		entries = []*delivery.Log{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deliveries": entries, "count": len(entries)})
}

// ListCampaignDeliveries returns every row of one bulk send.
func (h *Handlers) ListCampaignDeliveries(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	entries, err := h.deliveries.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		respondDeliveryError(w, err)
		return
	}
	if entries == nil {
		entries = []*delivery.Log{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deliveries": entries, "count": len(entries)})
}

func respondDeliveryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, delivery.ErrLogNotFound):
		respondError(w, http.StatusNotFound, "delivery not found")
	case errors.Is(err, delivery.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, delivery.ErrUnknownEvent):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, delivery.ErrStorageUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, template.ErrTemplateNotFound):
		respondError(w, http.StatusNotFound, "template not found")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
