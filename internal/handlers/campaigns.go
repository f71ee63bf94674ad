package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"evaluations/internal/evaluation"
	"evaluations/models"
)

type createCampaignRequest struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	IsAnonymous         bool     `json:"isAnonymous"`
	AllowSelfEvaluation bool     `json:"allowSelfEvaluation"`
	TargetDepartments   []string `json:"targetDepartments"`
	TargetUsers         []string `json:"targetUsers"`
	CreatedBy           string   `json:"createdBy"`
}

// CreateCampaignHandler обрабатывает POST /api/campaigns, даты в формате 2006-01-02
func (h *Handler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		http.Error(w, "Invalid startDate", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		http.Error(w, "Invalid endDate", http.StatusBadRequest)
		return
	}

	c, err := h.Engine.Lifecycle.Create(r.Context(), req.Title, req.Description, start, end, evaluation.CampaignOptions{
		IsAnonymous:         req.IsAnonymous,
		AllowSelfEvaluation: req.AllowSelfEvaluation,
		TargetDepartments:   req.TargetDepartments,
		TargetUsers:         req.TargetUsers,
		CreatedBy:           req.CreatedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.Lifecycle.Get(r.Context(), chi.URLParam(r, "campaignId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaign": c,
		"isOpen":   h.Engine.Lifecycle.IsCurrentlyOpen(c),
	})
}

// UpdateCampaignStatusHandler переводит кампанию в ?status=active|completed|archived
func (h *Handler) UpdateCampaignStatusHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	status := r.URL.Query().Get("status")

	var (
		c   *models.Campaign
		err error
	)
	switch status {
	case models.CampaignActive:
		c, err = h.Engine.Lifecycle.Activate(r.Context(), campaignID)
	case models.CampaignCompleted:
		c, err = h.Engine.Lifecycle.Complete(r.Context(), campaignID)
	case models.CampaignArchived:
		c, err = h.Engine.Lifecycle.Archive(r.Context(), campaignID)
	default:
		http.Error(w, fmt.Sprintf("Invalid status %q", status), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CompletionRateHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if _, err := h.Engine.Lifecycle.Get(r.Context(), campaignID); err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := h.Engine.Lifecycle.CompletionRate(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaignId": campaignID, "completionRate": rate})
}

// ExpireAssignmentsHandler закрывает незавершённые назначения после end_date
func (h *Handler) ExpireAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.Lifecycle.ExpireOverdue(r.Context(), chi.URLParam(r, "campaignId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expired": n})
}

func (h *Handler) AttachQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionIDs []string `json:"questionIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.QuestionIDs) == 0 {
		http.Error(w, "questionIds is required", http.StatusBadRequest)
		return
	}
	n, err := h.Engine.Catalog.AttachQuestions(r.Context(), chi.URLParam(r, "campaignId"), req.QuestionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"attached": n})
}

func (h *Handler) CampaignQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if _, err := h.Engine.Lifecycle.Get(r.Context(), campaignID); err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.Engine.Catalog.CampaignQuestions(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// BulkAssignHandler генерирует назначения; peers не задан - берётся из политики
func (h *Handler) BulkAssignHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Self         bool     `json:"self"`
		Supervisor   bool     `json:"supervisor"`
		Peers        *int     `json:"peers"`
		Subordinates bool     `json:"subordinates"`
		Evaluatees   []string `json:"evaluatees"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	opts := evaluation.AssignOptions{
		Self:         req.Self,
		Supervisor:   req.Supervisor,
		Peers:        -1,
		Subordinates: req.Subordinates,
		Evaluatees:   req.Evaluatees,
	}
	if req.Peers != nil {
		if *req.Peers < 0 {
			http.Error(w, "peers must not be negative", http.StatusBadRequest)
			return
		}
		opts.Peers = *req.Peers
	}

	sum, err := h.Engine.Assigner.BulkAssign(r.Context(), chi.URLParam(r, "campaignId"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": sum.Total(), "summary": sum})
}
