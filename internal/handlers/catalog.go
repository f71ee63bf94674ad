package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"evaluations/internal/evaluation"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type questionRequest struct {
	CategoryID string `json:"categoryId"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	MaxScore   *int   `json:"maxScore"`
	IsRequired bool   `json:"isRequired"`
	Order      int    `json:"order"`
}

func (q questionRequest) input() evaluation.QuestionInput {
	return evaluation.QuestionInput{
		CategoryID: q.CategoryID,
		Text:       q.Text,
		Type:       q.Type,
		MaxScore:   q.MaxScore,
		IsRequired: q.IsRequired,
		Order:      q.Order,
	}
}

// CreateCategoryHandler обрабатывает POST /api/categories
func (h *Handler) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cat, err := h.Engine.Catalog.CreateCategory(r.Context(), req.Name, req.Description, req.Order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// CreateQuestionHandler обрабатывает POST /api/questions
func (h *Handler) CreateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := h.Engine.Catalog.CreateQuestion(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// UpdateQuestionHandler правит вопрос, на который ещё нет ответов
func (h *Handler) UpdateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := h.Engine.Catalog.UpdateQuestion(r.Context(), chi.URLParam(r, "questionId"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
