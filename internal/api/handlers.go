package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/portal-mailer/internal/analytics"
	"github.com/ignite/portal-mailer/internal/delivery"
	"github.com/ignite/portal-mailer/internal/template"
)

// TemplateService is the template CRUD surface the handlers call.
type TemplateService interface {
	Create(ctx context.Context, req *template.CreateTemplateRequest) (*template.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*template.Template, error)
	List(ctx context.Context, category string) ([]*template.Template, error)
	Update(ctx context.Context, id uuid.UUID, req *template.UpdateTemplateRequest) (*template.Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Ready(ctx context.Context) error
}

// Sender is the dispatch surface the handlers call.
type Sender interface {
	SendSingle(ctx context.Context, templateID uuid.UUID, recipientEmail string, vars map[string]string) (*delivery.Log, error)
	SendCustom(ctx context.Context, recipientEmail, subject, body string) (*delivery.Log, error)
	SendBulk(ctx context.Context, templateID uuid.UUID, recipients []delivery.Recipient, campaignName string) (*delivery.BulkResult, error)
}

// EventApplier consumes provider webhook events.
type EventApplier interface {
	ApplyEvent(ctx context.Context, id uuid.UUID, event string, occurredAt time.Time) error
}

// DeliveryReader is the read side of the delivery log.
type DeliveryReader interface {
	Get(ctx context.Context, id uuid.UUID) (*delivery.Log, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*delivery.Log, error)
	ListRecent(ctx context.Context, limit int) ([]*delivery.Log, error)
	Ready(ctx context.Context) error
}

// Reporter produces the analytics reports.
type Reporter interface {
	Dashboard(ctx context.Context, p analytics.Period) (analytics.Report, error)
	Trends(ctx context.Context, p analytics.Period) ([]analytics.TrendPoint, error)
	ByTemplate(ctx context.Context, p analytics.Period) ([]analytics.GroupReport, error)
	ByCampaign(ctx context.Context, p analytics.Period) ([]analytics.GroupReport, error)
	ByDomain(ctx context.Context, p analytics.Period, limit int) ([]analytics.GroupReport, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	templates  TemplateService
	preview    *template.PreviewEngine
	dispatcher Sender
	tracker    EventApplier
	deliveries DeliveryReader
	reporter   Reporter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(templates TemplateService, preview *template.PreviewEngine, dispatcher Sender,
	tracker EventApplier, deliveries DeliveryReader, reporter Reporter) *Handlers {
	return &Handlers{
		templates:  templates,
		preview:    preview,
		dispatcher: dispatcher,
		tracker:    tracker,
		deliveries: deliveries,
		reporter:   reporter,
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// parsePeriod extracts the reporting window from query parameters.
// If no params are provided it defaults to the last 30 days.
func parsePeriod(r *http.Request) analytics.Period {
	now := time.Now()
	p := analytics.Period{From: now.AddDate(0, 0, -30), To: now}

	if s := r.URL.Query().Get("from"); s != "" {
		if from, err := time.Parse("2006-01-02", s); err == nil {
			p.From = from
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err := time.Parse("2006-01-02", s); err == nil {
			// The day named in "to" is included in the window.
			p.To = to.AddDate(0, 0, 1)
		}
	}
	return p
}

// Health check

// HealthCheck reports whether the backing stores are reachable.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.templates.Ready(r.Context()); err != nil {
		status = "degraded"
	} else if err := h.deliveries.Ready(r.Context()); err != nil {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
	})
}
