package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Templates
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/filters", h.ListFilters)
			r.Get("/{templateId}", h.GetTemplate)
			r.Put("/{templateId}", h.UpdateTemplate)
			r.Delete("/{templateId}", h.DeleteTemplate)
			r.Post("/{templateId}/preview", h.PreviewTemplate)
		})

		// Dispatch
		r.Route("/send", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Post("/custom", h.SendCustomMessage)
			r.Post("/bulk", h.SendBulk)
		})

		// Provider callbacks
		r.Post("/events", h.ReceiveEvent)

		// Delivery log
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/recent", h.ListRecentDeliveries)
			r.Get("/campaign/{campaignId}", h.ListCampaignDeliveries)
			r.Get("/{logId}", h.GetDelivery)
		})

		// Analytics
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/trends", h.GetTrends)
			r.Get("/templates", h.GetTemplateStats)
			r.Get("/campaigns", h.GetCampaignStats)
			r.Get("/domains", h.GetDomainStats)
		})
	})

	return r
}
