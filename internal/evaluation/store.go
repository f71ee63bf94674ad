package evaluation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"evaluations/models"
)

// Directory - внешний справочник пользователей и отделов, только чтение.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListDepartmentMembers(ctx context.Context, departmentID string) ([]models.User, error)
	ListSubordinates(ctx context.Context, supervisorID string) ([]models.User, error)
	ListActiveUsers(ctx context.Context) ([]models.User, error)
}

// Store - хранилище ядра. Методы Get* возвращают ErrNotFound, если записи нет.
type Store interface {
	// InTx выполняет fn в одной транзакции, удерживая блокировку по lockKey (если задан).
	InTx(ctx context.Context, lockKey string, fn func(tx Store) error) error

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id, status string) error

	CreateCategory(ctx context.Context, c *models.QuestionCategory) error
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, q *models.Question) error
	QuestionHasResponses(ctx context.Context, questionID string) (bool, error)
	AttachQuestion(ctx context.Context, campaignID, questionID string, order int) (bool, error)
	ListCampaignQuestions(ctx context.Context, campaignID string) ([]models.Question, error)

	// CreateAssignment - upsert по (campaign, evaluator, evaluatee): возвращает существующую запись и false, если она уже есть.
	CreateAssignment(ctx context.Context, a *models.Assignment) (*models.Assignment, bool, error)
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, a *models.Assignment) error
	ListEvaluateeAssignments(ctx context.Context, campaignID, evaluateeID string) ([]models.Assignment, error)
	ListEvaluatorAssignments(ctx context.Context, evaluatorID string, limit, offset int) ([]models.Assignment, error)
	CountAssignments(ctx context.Context, campaignID string) (total, completed int, err error)
	ExpireAssignments(ctx context.Context, campaignID string) (int64, error)

	// UpsertResponse - upsert по (assignment, question).
	UpsertResponse(ctx context.Context, r *models.Response) (*models.Response, bool, error)
	ListResponses(ctx context.Context, assignmentID string) ([]models.Response, error)
	ListScaleScores(ctx context.Context, campaignID, evaluateeID string) ([]models.ScaleScore, error)
	UpdateSentiment(ctx context.Context, responseID string, score float64, category string) error

	GetResult(ctx context.Context, id string) (*models.Result, error)
	GetResultFor(ctx context.Context, campaignID, evaluateeID string) (*models.Result, error)
	// UpsertResult перезаписывает баллы, но никогда не трогает is_finalized/finalized_at.
	UpsertResult(ctx context.Context, r *models.Result) (*models.Result, bool, error)
	// AdjustOverallScore обновляет overall_score только у незафиксированного результата.
	AdjustOverallScore(ctx context.Context, id string, score decimal.Decimal) (bool, error)
	FinalizeResult(ctx context.Context, id string, at time.Time) (bool, error)
	ReopenResult(ctx context.Context, id string) (bool, error)
	ListResults(ctx context.Context, campaignID string, onlyOpen bool) ([]models.Result, error)

	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	ListAudit(ctx context.Context, entity, entityID string) ([]models.AuditRecord, error)
}
