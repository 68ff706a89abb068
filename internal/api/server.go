package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/directory"
	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/live"
	"github.com/ignite/phishguard/internal/pkg/logger"
	"github.com/ignite/phishguard/internal/risk"
	"github.com/ignite/phishguard/internal/tracking"
)

// Server is the management API: campaign lifecycle, analytics, risk and
// compliance views, CSV export, and the live update websocket.
type Server struct {
	campaigns *campaign.Store
	events    *tracking.Store
	tracker   *funnel.Tracker
	scorer    *risk.Scorer
	dir       directory.Provider
	hub       *live.Hub
	log       *logger.Logger

	// planHorizon bounds how far ahead preview-plan materializes
	// open-ended recurring schedules.
	planHorizon int

	handler http.Handler
	server  *http.Server
}

// NewServer wires the API against its collaborators. hub may be nil when
// the live channel is disabled.
func NewServer(
	db *sql.DB,
	campaigns *campaign.Store,
	events *tracking.Store,
	tracker *funnel.Tracker,
	scorer *risk.Scorer,
	dir directory.Provider,
	hub *live.Hub,
) *Server {
	s := &Server{
		campaigns: campaigns,
		events:    events,
		tracker:   tracker,
		scorer:    scorer,
		dir:       dir,
		hub:       hub,
		log:       logger.Component("api"),

		planHorizon: campaign.DefaultPlanHorizonDays,
	}
	s.handler = s.routes()
	return s
}

// SetPlanHorizon overrides the preview-plan horizon for open-ended
// recurring schedules.
func (s *Server) SetPlanHorizon(days int) {
	if days > 0 {
		s.planHorizon = days
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if s.hub != nil {
		r.Handle("/ws", s.hub.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.handleCreateCampaign)
			r.Get("/", s.handleListCampaigns)
			r.Get("/{id}", s.handleGetCampaign)
			r.Post("/{id}/launch", s.handleLaunchCampaign)
			r.Post("/{id}/pause", s.handlePauseCampaign)
			r.Post("/{id}/resume", s.handleResumeCampaign)
			r.Post("/{id}/cancel", s.handleCancelCampaign)
			r.Post("/{id}/preview-plan", s.handlePreviewPlan)

			r.Get("/{id}/stats", s.handleCampaignStats)
			r.Get("/{id}/departments", s.handleDepartmentStats)
			r.Get("/{id}/trend", s.handleCampaignTrend)
			r.Get("/{id}/links", s.handleTopLinks)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Get("/organization", s.handleOrgRisk)
			r.Get("/users", s.handleUserLeaderboard)
			r.Get("/users/{userID}", s.handleUserRisk)
			r.Get("/departments", s.handleDepartmentRisks)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/", s.handleComplianceReport)
			r.Get("/{userID}", s.handleUserCompliance)
		})

		r.Get("/data-quality/orphans", s.handleOrphans)

		r.Route("/export", func(r chi.Router) {
			r.Get("/campaigns/{id}/stats.csv", s.handleExportCampaignCSV)
			r.Get("/risk/users.csv", s.handleExportUserRiskCSV)
			r.Get("/compliance.csv", s.handleExportComplianceCSV)
		})
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if s.hub != nil {
		sessions = s.hub.Sessions()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"live_sessions": sessions,
		"timestamp":     time.Now().UTC(),
	})
}
