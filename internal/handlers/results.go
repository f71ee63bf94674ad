package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"evaluations/internal/evaluation"
	"evaluations/models"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

// GetResultsHandler возвращает результаты кампании с пагинацией
func (h *Handler) GetResultsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	campaignID := chi.URLParam(r, "campaignId")
	if _, err := h.Engine.Lifecycle.Get(r.Context(), campaignID); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := h.Engine.Calibration.Results(r.Context(), campaignID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := []models.Result{}
	if params.Offset < len(results) {
		page = results[params.Offset:min(params.Offset+params.Limit, len(results))]
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Calibration.Result(r.Context(), chi.URLParam(r, "resultId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ResultsSummaryHandler возвращает сводку кампании для калибровки
func (h *Handler) ResultsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.Calibration.Summary(r.Context(), chi.URLParam(r, "campaignId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) ResultBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.Calibration.Breakdown(r.Context(), chi.URLParam(r, "resultId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// RecomputeHandler вручную пересчитывает результат оцениваемого
func (h *Handler) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Aggregator.Recompute(r.Context(), chi.URLParam(r, "campaignId"), chi.URLParam(r, "evaluateeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdjustScoreHandler принимает {"overallScore": 4.8, "reason": "..."}
func (h *Handler) AdjustScoreHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OverallScore *decimal.Decimal `json:"overallScore"`
		Reason       string           `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OverallScore == nil {
		http.Error(w, "overallScore is required", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.Calibration.AdjustScore(r.Context(), chi.URLParam(r, "resultId"), *req.OverallScore, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) FinalizeResultHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Calibration.Finalize(r.Context(), chi.URLParam(r, "resultId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ReopenResultHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Engine.Calibration.Reopen(r.Context(), chi.URLParam(r, "resultId"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BulkFinalizeHandler фиксирует все открытые результаты; частичные ошибки возвращаются списком
func (h *Handler) BulkFinalizeHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if _, err := h.Engine.Lifecycle.Get(r.Context(), campaignID); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.Engine.Calibration.BulkFinalize(r.Context(), campaignID)
	reasons := []string{}
	var failures *evaluation.FinalizeFailures
	switch {
	case errors.As(err, &failures):
		for _, f := range failures.Unwrap() {
			reasons = append(reasons, f.Error())
		}
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"finalized": n, "failed": reasons})
}

func (h *Handler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.Engine.AuditTrail(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "entityId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

