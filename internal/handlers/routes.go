package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter регистрирует все маршруты API
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// каталог вопросов
		r.Post("/categories", h.CreateCategoryHandler)
		r.Post("/questions", h.CreateQuestionHandler)
		r.Patch("/questions/{questionId}", h.UpdateQuestionHandler)
		// кампании
		r.Post("/campaigns", h.CreateCampaignHandler)
		r.Get("/campaigns/{campaignId}", h.GetCampaignHandler)
		r.Put("/campaigns/{campaignId}/status", h.UpdateCampaignStatusHandler)
		r.Get("/campaigns/{campaignId}/completion", h.CompletionRateHandler)
		r.Post("/campaigns/{campaignId}/expire", h.ExpireAssignmentsHandler)
		r.Post("/campaigns/{campaignId}/questions", h.AttachQuestionsHandler)
		r.Get("/campaigns/{campaignId}/questions", h.CampaignQuestionsHandler)
		r.Post("/campaigns/{campaignId}/assignments", h.CreateAssignmentHandler)
		r.Post("/campaigns/{campaignId}/assignments/bulk", h.BulkAssignHandler)
		r.Get("/campaigns/{campaignId}/results", h.GetResultsHandler)
		r.Get("/campaigns/{campaignId}/results/summary", h.ResultsSummaryHandler)
		r.Put("/campaigns/{campaignId}/results/finalize", h.BulkFinalizeHandler)
		r.Put("/campaigns/{campaignId}/evaluatees/{evaluateeId}/recompute", h.RecomputeHandler)
		// назначения и ответы
		r.Get("/assignments/my", h.GetUserAssignmentsHandler)
		r.Get("/assignments/{assignmentId}/responses", h.GetResponsesHandler)
		r.Put("/assignments/{assignmentId}/responses/{questionId}", h.RecordResponseHandler)
		r.Get("/assignments/{assignmentId}/progress", h.ProgressHandler)
		r.Put("/assignments/{assignmentId}/submit", h.SubmitAssignmentHandler)
		// результаты и калибровка
		r.Get("/results/{resultId}", h.GetResultHandler)
		r.Get("/results/{resultId}/breakdown", h.ResultBreakdownHandler)
		r.Put("/results/{resultId}/score", h.AdjustScoreHandler)
		r.Put("/results/{resultId}/finalize", h.FinalizeResultHandler)
		r.Put("/results/{resultId}/reopen", h.ReopenResultHandler)
		r.Get("/audit/{entity}/{entityId}", h.GetAuditHandler)
	})
	return r
}
