package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/portal-mailer/internal/analytics"
)

// GetDashboard returns the headline report for the requested period.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Dashboard(r.Context(), parsePeriod(r))
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetTrends returns the per-day trend series for the requested period.
func (h *Handlers) GetTrends(w http.ResponseWriter, r *http.Request) {
	points, err := h.reporter.Trends(r.Context(), parsePeriod(r))
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	if points == nil {
		points = []analytics.TrendPoint{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"trends": points})
}

// GetTemplateStats returns per-template reports for the requested period.
func (h *Handlers) GetTemplateStats(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reporter.ByTemplate(r.Context(), parsePeriod(r))
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondGroupReports(w, "templates", reports)
}

// GetCampaignStats returns per-campaign reports for the requested period.
func (h *Handlers) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reporter.ByCampaign(r.Context(), parsePeriod(r))
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondGroupReports(w, "campaigns", reports)
}

// GetDomainStats returns per-recipient-domain reports for the requested
// period, busiest domains first.
func (h *Handlers) GetDomainStats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	reports, err := h.reporter.ByDomain(r.Context(), parsePeriod(r), limit)
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondGroupReports(w, "domains", reports)
}

func respondGroupReports(w http.ResponseWriter, key string, reports []analytics.GroupReport) {
	if reports == nil {
		reports = []analytics.GroupReport{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{key: reports})
}

func respondAnalyticsError(w http.ResponseWriter, err error) {
	if errors.Is(err, analytics.ErrInvalidPeriod) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
