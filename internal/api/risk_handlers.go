package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleOrgRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := s.events.ListAll(ctx)
	if err != nil {
		s.log.Error("list events failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	score, err := s.scorer.OrganizationRisk(ctx, s.tracker.AllRecords(), events)
	if err != nil {
		s.log.Error("organization risk failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute organization risk")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleUserLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	board, err := s.scorer.UserLeaderboard(ctx, s.tracker.AllRecords())
	if err != nil {
		s.log.Error("user leaderboard failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute user risk")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": board,
		"count": len(board),
	})
}

func (s *Server) handleUserRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	risk, err := s.scorer.UserRiskFor(ctx, userID, s.tracker.UserRecords(userID))
	if err != nil {
		s.log.Error("user risk failed", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute user risk")
		return
	}
	writeJSON(w, http.StatusOK, risk)
}

func (s *Server) handleDepartmentRisks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	depts, err := s.scorer.DepartmentRisks(ctx, s.tracker.AllRecords())
	if err != nil {
		s.log.Error("department risks failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute department risk")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"departments": depts,
	})
}

func (s *Server) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := s.scorer.ComplianceReport(ctx, time.Now())
	if err != nil {
		s.log.Error("compliance report failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute compliance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": report,
		"count":   len(report),
	})
}

func (s *Server) handleUserCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	rec, err := s.scorer.ComplianceFor(ctx, userID, time.Now())
	if err != nil {
		s.log.Error("user compliance failed", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute compliance")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
