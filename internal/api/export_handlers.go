package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/phishguard/internal/analytics"
)

// CSV exports flatten each entity to one row with a stable header, so
// the files load cleanly into spreadsheets without post-processing.

func (s *Server) handleExportCampaignCSV(w http.ResponseWriter, r *http.Request) {
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
	overall := analytics.ComputeCampaignStats(c.ID.String(), records)
	depts := analytics.ComputeDepartmentStats(c.ID.String(), records, departmentOf)

	csvHeaders(w, fmt.Sprintf("campaign_%s_stats.csv", c.ID.String()))
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"campaign_id", "scope", "emails_sent", "emails_opened", "emails_clicked",
		"emails_reported", "open_rate", "click_rate", "report_rate", "vulnerability_score",
	})
	writeStatsRow(cw, "overall", overall)
	for _, d := range depts {
		writeStatsRow(cw, d.Department, d.CampaignStats)
	}
	cw.Flush()
}

func writeStatsRow(cw *csv.Writer, scope string, st analytics.CampaignStats) {
	cw.Write([]string{
		st.CampaignID,
		scope,
		strconv.Itoa(st.EmailsSent),
		strconv.Itoa(st.EmailsOpened),
		strconv.Itoa(st.EmailsClicked),
		strconv.Itoa(st.EmailsReported),
		formatRate(st.OpenRate),
		formatRate(st.ClickRate),
		formatRate(st.ReportRate),
		formatRate(st.VulnerabilityScore),
	})
}

func (s *Server) handleExportUserRiskCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	board, err := s.scorer.UserLeaderboard(ctx, s.tracker.AllRecords())
	if err != nil {
		s.log.Error("user leaderboard failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute user risk")
		return
	}

	csvHeaders(w, "user_risk.csv")
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"user_id", "department", "emails_sent", "emails_clicked",
		"click_rate", "risk_score", "risk_bucket",
	})
	for _, u := range board {
		cw.Write([]string{
			u.UserID,
			u.Department,
			strconv.Itoa(u.EmailsSent),
			strconv.Itoa(u.EmailsClicked),
			formatRate(u.ClickRate),
			formatRate(u.Score),
			string(u.Bucket),
		})
	}
	cw.Flush()
}

func (s *Server) handleExportComplianceCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := s.scorer.ComplianceReport(ctx, time.Now())
	if err != nil {
		s.log.Error("compliance report failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to compute compliance")
		return
	}

	csvHeaders(w, "compliance.csv")
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"user_id", "courses_completed", "last_training_at",
		"days_since_last_training", "status",
	})
	for _, rec := range report {
		last := ""
		if rec.LastTrainingAt != nil {
			last = rec.LastTrainingAt.Format(time.RFC3339)
		}
		cw.Write([]string{
			rec.UserID,
			strconv.Itoa(rec.CoursesCompleted),
			last,
			strconv.Itoa(rec.DaysSinceLastTraining),
			string(rec.Status),
		})
	}
	cw.Flush()
}

func csvHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
