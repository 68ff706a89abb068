package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/directory"
)

type createCampaignRequest struct {
	Name         string                  `json:"name"`
	TemplateID   string                  `json:"template_id"`
	TargetGroups []string                `json:"target_groups"`
	Schedule     campaign.ScheduleConfig `json:"schedule"`
	Batch        *campaign.BatchConfig   `json:"batch,omitempty"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "template_id is required")
		return
	}
	if len(req.TargetGroups) == 0 {
		req.TargetGroups = []string{campaign.TargetAll}
	}

	c := &campaign.Campaign{
		ID:           uuid.New(),
		Name:         req.Name,
		TemplateID:   req.TemplateID,
		TargetGroups: req.TargetGroups,
		Schedule:     req.Schedule,
		Batch:        req.Batch,
		Status:       campaign.StatusDraft,
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		s.log.Error("create campaign failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	s.tracker.RegisterCampaign(c.ID.String())

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	list, err := s.campaigns.List(ctx, limit)
	if err != nil {
		s.log.Error("list campaigns failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": list,
		"count":     len(list),
	})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	now := time.Now()
	first, err := campaign.FirstDispatch(c.Schedule, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Launch(first, now); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.campaigns.SaveDispatchState(ctx, c); err != nil {
		s.log.Error("persist launch failed", "campaign_id", c.ID.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to launch campaign")
		return
	}

	s.log.Info("campaign launched",
		"campaign_id", c.ID.String(),
		"status", c.Status,
		"first_dispatch", first.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, (*campaign.Campaign).Pause)
}

func (s *Server) handleResumeCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, (*campaign.Campaign).Resume)
}

func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, (*campaign.Campaign).Cancel)
}

func (s *Server) transitionCampaign(w http.ResponseWriter, r *http.Request, transition func(*campaign.Campaign) error) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	if err := transition(c); err != nil {
		if errors.Is(err, campaign.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.campaigns.SaveDispatchState(ctx, c); err != nil {
		s.log.Error("persist status failed", "campaign_id", c.ID.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePreviewPlan expands the dispatch plan a launch would produce,
// without touching campaign state. Useful for sanity-checking recurrence
// settings before going live.
func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := s.campaignFromRequest(w, r)
	if !ok {
		return
	}

	recipients, err := s.resolveRecipients(ctx, c)
	if err != nil {
		s.log.Error("resolve recipients failed", "campaign_id", c.ID.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to resolve recipients")
		return
	}

	plan, err := campaign.PlanWithHorizon(c.Schedule, c.Batch, recipients, time.Now(), s.planHorizon)
	if err != nil {
		if errors.Is(err, campaign.ErrInvalidSchedule) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) resolveRecipients(ctx context.Context, c *campaign.Campaign) ([]string, error) {
	var (
		users []directory.User
		err   error
	)
	if c.TargetsAll() {
		users, err = s.dir.Users(ctx)
	} else {
		users, err = s.dir.UsersInDepartments(ctx, c.TargetGroups)
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *Server) campaignFromRequest(w http.ResponseWriter, r *http.Request) (*campaign.Campaign, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return nil, false
	}
	c, err := s.campaigns.Get(r.Context(), id)
	if err != nil {
		s.log.Error("get campaign failed", "campaign_id", id.String(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to fetch campaign")
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return nil, false
	}
	return c, true
}
