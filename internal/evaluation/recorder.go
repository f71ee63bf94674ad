package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"evaluations/internal/logging"
	"evaluations/models"
)

// Answer - ответ на вопрос. Заполняется ровно одно поле, соответствующее типу вопроса.
type Answer struct {
	Score   *int    `json:"score,omitempty"`
	Boolean *bool   `json:"booleanAnswer,omitempty"`
	Text    *string `json:"textAnswer,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

func (a Answer) hasText() bool {
	return a.Text != nil && strings.TrimSpace(*a.Text) != ""
}

// populated возвращает типы вопросов, для которых в ответе есть значение
func (a Answer) populated() []string {
	var kinds []string
	if a.Score != nil {
		kinds = append(kinds, models.QuestionScale)
	}
	if a.Boolean != nil {
		kinds = append(kinds, models.QuestionBoolean)
	}
	if a.hasText() {
		kinds = append(kinds, models.QuestionText)
	}
	return kinds
}

// validateAnswer проверяет соответствие ответа типу вопроса и обязательность
func validateAnswer(q *models.Question, a Answer) error {
	for _, kind := range a.populated() {
		if kind != q.Type {
			return fmt.Errorf("%w: %s answer for %s question", ErrInvalidAnswerType, kind, q.Type)
		}
	}
	if q.IsRequired && !answered(q, a) {
		return fmt.Errorf("%w: question %s", ErrMissingRequiredResponse, q.ID)
	}
	if q.Type == models.QuestionScale && a.Score != nil {
		max := defaultMaxScore
		if q.MaxScore != nil {
			max = *q.MaxScore
		}
		if *a.Score < 1 || *a.Score > max {
			return fmt.Errorf("%w: %d not in 1..%d", ErrScoreOutOfRange, *a.Score, max)
		}
	}
	return nil
}

func answered(q *models.Question, a Answer) bool {
	switch q.Type {
	case models.QuestionScale:
		return a.Score != nil
	case models.QuestionBoolean:
		return a.Boolean != nil
	case models.QuestionText:
		return a.hasText()
	}
	return false
}

func answerOf(r models.Response) Answer {
	return Answer{Score: r.Score, Boolean: r.BooleanAnswer, Text: r.TextAnswer, Comment: r.Comment}
}

// Recorder сохраняет ответы и ведёт статус назначения.
type Recorder struct {
	store  Store
	events Publisher
	now    func() time.Time
	newID  func() string
}

func NewRecorder(store Store, events Publisher) *Recorder {
	if events == nil {
		events = nopPublisher{}
	}
	return &Recorder{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Record сохраняет (или перезаписывает) ответ. Первый ответ переводит назначение в in_progress.
func (r *Recorder) Record(ctx context.Context, assignmentID, questionID string, a Answer) (*models.Response, error) {
	var saved *models.Response
	err := r.store.InTx(ctx, "assignment:"+assignmentID, func(tx Store) error {
		asg, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if asg.Status == models.AssignmentCompleted || asg.Status == models.AssignmentExpired {
			return fmt.Errorf("%w: assignment is %s", ErrAssignmentClosed, asg.Status)
		}

		q, err := campaignQuestion(ctx, tx, asg.CampaignID, questionID)
		if err != nil {
			return err
		}
		if err := validateAnswer(q, a); err != nil {
			return err
		}

		resp := &models.Response{
			ID:           r.newID(),
			AssignmentID: asg.ID,
			QuestionID:   q.ID,
			Comment:      strings.TrimSpace(a.Comment),
		}
		// сохраняется только поле, соответствующее типу вопроса
		switch q.Type {
		case models.QuestionScale:
			resp.Score = a.Score
		case models.QuestionBoolean:
			resp.BooleanAnswer = a.Boolean
		case models.QuestionText:
			if a.hasText() {
				text := strings.TrimSpace(*a.Text)
				resp.TextAnswer = &text
			}
		}

		saved, _, err = tx.UpsertResponse(ctx, resp)
		if err != nil {
			return err
		}

		if asg.Status == models.AssignmentPending {
			started := r.now()
			asg.Status = models.AssignmentInProgress
			asg.StartedAt = &started
			if err := tx.UpdateAssignmentStatus(ctx, asg); err != nil {
				return err
			}
		}
		return audit(ctx, tx, auditResponse, saved.ID, "recorded", map[string]any{
			"assignment": asg.ID, "question": q.ID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}

	text := ""
	if saved.TextAnswer != nil {
		text = *saved.TextAnswer
	}
	if text == "" {
		text = saved.Comment
	}
	if text != "" {
		r.events.PublishResponseTextSaved(ctx, ResponseTextSaved{ResponseID: saved.ID, Text: text})
	}
	return saved, nil
}

// Submit завершает назначение, если на все обязательные вопросы есть ответы.
// При неудаче статус назначения не меняется.
func (r *Recorder) Submit(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	var done *models.Assignment
	err := r.store.InTx(ctx, "assignment:"+assignmentID, func(tx Store) error {
		asg, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if asg.Status == models.AssignmentCompleted || asg.Status == models.AssignmentExpired {
			return fmt.Errorf("%w: assignment is %s", ErrAssignmentClosed, asg.Status)
		}

		questions, err := tx.ListCampaignQuestions(ctx, asg.CampaignID)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, asg.ID)
		if err != nil {
			return err
		}
		byQuestion := make(map[string]models.Response, len(responses))
		for _, resp := range responses {
			byQuestion[resp.QuestionID] = resp
		}

		var missing []string
		for i := range questions {
			q := &questions[i]
			if !q.IsRequired {
				continue
			}
			resp, ok := byQuestion[q.ID]
			if !ok || !answered(q, answerOf(resp)) {
				missing = append(missing, q.ID)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %d missing (%s)", ErrIncompleteSubmission, len(missing), strings.Join(missing, ", "))
		}

		now := r.now()
		if asg.StartedAt == nil {
			asg.StartedAt = &now
		}
		asg.Status = models.AssignmentCompleted
		asg.CompletedAt = &now
		if err := tx.UpdateAssignmentStatus(ctx, asg); err != nil {
			return err
		}
		done = asg
		return audit(ctx, tx, auditAssignment, asg.ID, "completed", map[string]any{
			"campaign": asg.CampaignID, "evaluatee": asg.EvaluateeID, "responses": len(responses),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("submit assignment %s: %w", assignmentID, err)
	}

	logging.Log.WithFields(logrus.Fields{
		"assignment": done.ID,
		"campaign":   done.CampaignID,
		"evaluatee":  done.EvaluateeID,
	}).Info("assignment completed")

	r.events.PublishAssignmentCompleted(ctx, AssignmentCompleted{
		AssignmentID: done.ID,
		CampaignID:   done.CampaignID,
		EvaluatorID:  done.EvaluatorID,
		EvaluateeID:  done.EvaluateeID,
		CompletedAt:  *done.CompletedAt,
	})
	return done, nil
}

// Progress - доля отвеченных вопросов кампании в процентах
func (r *Recorder) Progress(ctx context.Context, assignmentID string) (decimal.Decimal, error) {
	asg, err := r.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return decimal.Zero, err
	}
	questions, err := r.store.ListCampaignQuestions(ctx, asg.CampaignID)
	if err != nil {
		return decimal.Zero, err
	}
	responses, err := r.store.ListResponses(ctx, asg.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return percent(len(responses), len(questions)), nil
}

// Responses возвращает ответы назначения
func (r *Recorder) Responses(ctx context.Context, assignmentID string) ([]models.Response, error) {
	if _, err := r.store.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	return r.store.ListResponses(ctx, assignmentID)
}

// EvaluatorAssignments - назначения, которые должен заполнить оценивающий, новые первыми
func (r *Recorder) EvaluatorAssignments(ctx context.Context, evaluatorID string, limit, offset int) ([]models.Assignment, error) {
	return r.store.ListEvaluatorAssignments(ctx, evaluatorID, limit, offset)
}

func campaignQuestion(ctx context.Context, s Store, campaignID, questionID string) (*models.Question, error) {
	questions, err := s.ListCampaignQuestions(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %s in campaign %s: %w", questionID, campaignID, ErrNotFound)
}
