package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"evaluations/internal/evaluation"
)

// CreateAssignmentHandler создаёт одно назначение явно
func (h *Handler) CreateAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EvaluatorID  string `json:"evaluatorId"`
		EvaluateeID  string `json:"evaluateeId"`
		Relationship string `json:"relationship"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EvaluatorID == "" || req.EvaluateeID == "" {
		http.Error(w, "evaluatorId and evaluateeId are required", http.StatusBadRequest)
		return
	}

	a, err := h.Engine.Assigner.AssignOne(r.Context(), chi.URLParam(r, "campaignId"), req.EvaluatorID, req.EvaluateeID, req.Relationship)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetUserAssignmentsHandler возвращает назначения оценивающего ?evaluator=
func (h *Handler) GetUserAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	evaluator := strings.TrimSpace(r.URL.Query().Get("evaluator"))
	if evaluator == "" {
		http.Error(w, "Missing evaluator parameter", http.StatusBadRequest)
		return
	}

	assignments, err := h.Engine.Recorder.EvaluatorAssignments(r.Context(), evaluator, params.Limit, params.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// RecordResponseHandler сохраняет ответ на вопрос, повторный вызов перезаписывает его
func (h *Handler) RecordResponseHandler(w http.ResponseWriter, r *http.Request) {
	var answer evaluation.Answer
	if !decodeBody(w, r, &answer) {
		return
	}
	resp, err := h.Engine.Recorder.Record(r.Context(), chi.URLParam(r, "assignmentId"), chi.URLParam(r, "questionId"), answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetResponsesHandler(w http.ResponseWriter, r *http.Request) {
	responses, err := h.Engine.Recorder.Responses(r.Context(), chi.URLParam(r, "assignmentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")
	progress, err := h.Engine.Recorder.Progress(r.Context(), assignmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignmentId": assignmentID, "progress": progress})
}

// SubmitAssignmentHandler завершает назначение; без обязательных ответов - 422
func (h *Handler) SubmitAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.Engine.Recorder.Submit(r.Context(), chi.URLParam(r, "assignmentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
