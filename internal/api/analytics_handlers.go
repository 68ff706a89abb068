package api

import (
	"net/http"
	"time"

	"github.com/ignite/phishguard/internal/analytics"
)

func (s *Server) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	records := s.tracker.CampaignRecords(c.ID.String())
	stats := analytics.ComputeCampaignStats(c.ID.String(), records)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDepartmentStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	departmentOf, err := s.dir.DepartmentOf(ctx)
	if err != nil {
		s.log.Error("department mapping failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load directory")
		return
	}

	records := s.tracker.CampaignRecords(c.ID.String())
	stats := analytics.ComputeDepartmentStats(c.ID.String(), records, departmentOf)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": c.ID.String(),
		"departments": stats,
	})
}

// handleCampaignTrend returns the per-day trend series. The window
// defaults to launch-to-now and can be overridden with RFC 3339 start
// and end query parameters.
func (s *Server) handleCampaignTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	end := time.Now()
	start := c.CreatedAt
	if c.LaunchedAt != nil {
		start = *c.LaunchedAt
	}
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time")
			return
		}
		end = t
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end before start")
		return
	}

	events, err := s.events.ListBetween(ctx, c.ID.String(), start, end)
	if err != nil {
		s.log.Error("list events failed", "campaign_id", c.ID.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	trend := analytics.CampaignTrend(events, start, end)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": c.ID.String(),
		"start":       start,
		"end":         end,
		"points":      trend,
	})
}

func (s *Server) handleTopLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	events, err := s.events.ListByCampaign(ctx, c.ID.String())
	if err != nil {
		s.log.Error("list events failed", "campaign_id", c.ID.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	links := analytics.TopClickedLinks(events, c.TemplateID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": c.ID.String(),
		"links":       links,
	})
}

// handleOrphans surfaces events that referenced unknown campaigns, so
// misconfigured tracking URLs are visible instead of silently dropped.
func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	orphans := s.tracker.Orphans()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orphans": orphans,
		"count":   len(orphans),
	})
}
