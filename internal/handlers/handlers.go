package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"evaluations/internal/evaluation"
	"evaluations/internal/logging"
)

// Handler оборачивает Engine для доступа к операциям кампании
type Handler struct {
	Engine *evaluation.Engine
}

// NewHandler создает новый Handler
func NewHandler(engine *evaluation.Engine) *Handler {
	return &Handler{Engine: engine}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// decodeBody читает JSON тела запроса в dst
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Log.Errorf("HTTP: encode response: %v", err)
	}
}

// statusOf сопоставляет ошибки ядра с HTTP-статусами
func statusOf(err error) int {
	switch {
	case errors.Is(err, evaluation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, evaluation.ErrIncompleteSubmission),
		errors.Is(err, evaluation.ErrMissingRequiredResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, evaluation.ErrDuplicateAssignment),
		errors.Is(err, evaluation.ErrAlreadyFinalized),
		errors.Is(err, evaluation.ErrNotFinalized),
		errors.Is(err, evaluation.ErrInvalidTransition),
		errors.Is(err, evaluation.ErrAssignmentClosed),
		errors.Is(err, evaluation.ErrQuestionInUse):
		return http.StatusConflict
	case errors.Is(err, evaluation.ErrInvalidDateRange),
		errors.Is(err, evaluation.ErrInvalidCampaign),
		errors.Is(err, evaluation.ErrInvalidQuestion),
		errors.Is(err, evaluation.ErrInvalidAnswerType),
		errors.Is(err, evaluation.ErrScoreOutOfRange),
		errors.Is(err, evaluation.ErrSelfRelationshipMismatch),
		errors.Is(err, evaluation.ErrSelfEvaluationDisabled),
		errors.Is(err, evaluation.ErrUnknownRelationship):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logging.Log.WithField("path", r.URL.Path).Errorf("HTTP: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	writeJSON(w, status, map[string]string{"reason": err.Error()})
}
