package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Статусы кампании
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignCompleted = "completed"
	CampaignArchived  = "archived"
)

// Типы вопросов
const (
	QuestionScale   = "scale"
	QuestionBoolean = "boolean"
	QuestionText    = "text"
)

// Отношение оценивающего к оцениваемому
const (
	RelationSelf        = "self"
	RelationSupervisor  = "supervisor"
	RelationPeer        = "peer"
	RelationSubordinate = "subordinate"
)

// Relationships перечисляет отношения в порядке подсчёта результатов.
var Relationships = []string{RelationSelf, RelationSupervisor, RelationPeer, RelationSubordinate}

// Статусы назначения
const (
	AssignmentPending    = "pending"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
	AssignmentExpired    = "expired"
)

// Сущность Кампании оценки
type Campaign struct {
	ID                  string         `db:"id" json:"id"`
	Title               string         `db:"title" json:"title"`
	Description         string         `db:"description" json:"description"`
	StartDate           time.Time      `db:"start_date" json:"startDate"`
	EndDate             time.Time      `db:"end_date" json:"endDate"`
	Status              string         `db:"status" json:"status"`
	IsAnonymous         bool           `db:"is_anonymous" json:"isAnonymous"`
	AllowSelfEvaluation bool           `db:"allow_self_evaluation" json:"allowSelfEvaluation"`
	TargetDepartments   pq.StringArray `db:"target_departments" json:"targetDepartments"`
	TargetUsers         pq.StringArray `db:"target_users" json:"targetUsers"`
	CreatedBy           string         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time      `db:"updated_at" json:"-"`
}

// Категория вопросов (Лидерство, Коммуникация и т.д.)
type QuestionCategory struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Order       int       `db:"sort_order" json:"order"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Вопроса
type Question struct {
	ID         string    `db:"id" json:"id"`
	CategoryID string    `db:"category_id" json:"categoryId"`
	Text       string    `db:"text" json:"text"`
	Type       string    `db:"question_type" json:"type"`
	MaxScore   *int      `db:"max_score" json:"maxScore,omitempty"`
	IsRequired bool      `db:"is_required" json:"isRequired"`
	Order      int       `db:"sort_order" json:"order"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Назначения: кто кого оценивает в кампании
type Assignment struct {
	ID           string     `db:"id" json:"id"`
	CampaignID   string     `db:"campaign_id" json:"campaignId"`
	EvaluatorID  string     `db:"evaluator_id" json:"evaluatorId"`
	EvaluateeID  string     `db:"evaluatee_id" json:"evaluateeId"`
	Relationship string     `db:"relationship" json:"relationship"`
	Status       string     `db:"status" json:"status"`
	StartedAt    *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// Сущность Ответа на один вопрос
type Response struct {
	ID                string    `db:"id" json:"id"`
	AssignmentID      string    `db:"assignment_id" json:"assignmentId"`
	QuestionID        string    `db:"question_id" json:"questionId"`
	Score             *int      `db:"score" json:"score,omitempty"`
	BooleanAnswer     *bool     `db:"boolean_answer" json:"booleanAnswer,omitempty"`
	TextAnswer        *string   `db:"text_answer" json:"textAnswer,omitempty"`
	Comment           string    `db:"comment" json:"comment,omitempty"`
	SentimentScore    *float64  `db:"sentiment_score" json:"sentimentScore,omitempty"`
	SentimentCategory *string   `db:"sentiment_category" json:"sentimentCategory,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"-"`
}

// Сущность агрегированного Результата по оцениваемому
type Result struct {
	ID               string              `db:"id" json:"id"`
	CampaignID       string              `db:"campaign_id" json:"campaignId"`
	EvaluateeID      string              `db:"evaluatee_id" json:"evaluateeId"`
	OverallScore     decimal.NullDecimal `db:"overall_score" json:"overallScore"`
	SelfScore        decimal.NullDecimal `db:"self_score" json:"selfScore"`
	SupervisorScore  decimal.NullDecimal `db:"supervisor_score" json:"supervisorScore"`
	PeerScore        decimal.NullDecimal `db:"peer_score" json:"peerScore"`
	SubordinateScore decimal.NullDecimal `db:"subordinate_score" json:"subordinateScore"`
	TotalEvaluators  int                 `db:"total_evaluators" json:"totalEvaluators"`
	CompletionRate   decimal.Decimal     `db:"completion_rate" json:"completionRate"`
	IsFinalized      bool                `db:"is_finalized" json:"isFinalized"`
	FinalizedAt      *time.Time          `db:"finalized_at" json:"finalizedAt,omitempty"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
}

// ScaleScore - балл по шкале вместе с отношением оценивающего и категорией вопроса
type ScaleScore struct {
	AssignmentID  string `db:"assignment_id"`
	Relationship  string `db:"relationship"`
	Score         int    `db:"score"`
	CategoryID    string `db:"category_id"`
	CategoryName  string `db:"category_name"`
	CategoryOrder int    `db:"category_order"`
}

// Запись аудита, только добавление
type AuditRecord struct {
	ID        int64     `db:"id" json:"id"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entityId"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Пользователя (из справочника, только чтение)
type User struct {
	ID           string  `db:"id" json:"id"`
	FullName     string  `db:"full_name" json:"fullName"`
	SupervisorID *string `db:"supervisor_id" json:"supervisorId,omitempty"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
	Role         string  `db:"role" json:"role"`
	IsActive     bool    `db:"is_active" json:"isActive"`
}

// Сущность Отдела (из справочника, только чтение)
type Department struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"isActive"`
}
