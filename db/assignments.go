package db

import (
	"context"
	"database/sql"
	"errors"

	"evaluations/internal/logging"
	"evaluations/models"
)

// Assignment (Назначение)

// CreateAssignment вставляет назначение; при конфликте тройки возвращает существующее и false
func (s *Storage) CreateAssignment(ctx context.Context, a *models.Assignment) (*models.Assignment, bool, error) {
	query := `
        INSERT INTO assignment
            (id, campaign_id, evaluator_id, evaluatee_id, relationship, status)
        VALUES
            ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (campaign_id, evaluator_id, evaluatee_id) DO NOTHING
        RETURNING created_at`
	err := s.db.QueryRowxContext(ctx, query,
		a.ID, a.CampaignID, a.EvaluatorID, a.EvaluateeID, a.Relationship, a.Status).
		Scan(&a.CreatedAt)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		logging.Log.Errorf("ASSIGNMENT: create failed: %v", err)
		return nil, false, err
	}

	existing := &models.Assignment{}
	query = `SELECT * FROM assignment WHERE campaign_id=$1 AND evaluator_id=$2 AND evaluatee_id=$3`
	if err := s.db.GetContext(ctx, existing, query, a.CampaignID, a.EvaluatorID, a.EvaluateeID); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Storage) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	a := &models.Assignment{}
	query := `SELECT * FROM assignment WHERE id=$1`
	if err := s.db.GetContext(ctx, a, query, id); err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return a, nil
}

func (s *Storage) UpdateAssignmentStatus(ctx context.Context, a *models.Assignment) error {
	query := `
        UPDATE assignment
        SET status=$1, started_at=$2, completed_at=$3
        WHERE id=$4`
	_, err := s.db.ExecContext(ctx, query, a.Status, a.StartedAt, a.CompletedAt, a.ID)
	if err != nil {
		logging.Log.Errorf("ASSIGNMENT: status update of %s failed: %v", a.ID, err)
	}
	return err
}

func (s *Storage) ListEvaluateeAssignments(ctx context.Context, campaignID, evaluateeID string) ([]models.Assignment, error) {
	query := `
        SELECT * FROM assignment
        WHERE campaign_id=$1 AND evaluatee_id=$2
        ORDER BY relationship, evaluator_id`
	assignments := []models.Assignment{}
	err := s.db.SelectContext(ctx, &assignments, query, campaignID, evaluateeID)
	return assignments, err
}

func (s *Storage) ListEvaluatorAssignments(ctx context.Context, evaluatorID string, limit, offset int) ([]models.Assignment, error) {
	query := `
        SELECT * FROM assignment
        WHERE evaluator_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	assignments := []models.Assignment{}
	err := s.db.SelectContext(ctx, &assignments, query, evaluatorID, limit, offset)
	return assignments, err
}

func (s *Storage) CountAssignments(ctx context.Context, campaignID string) (total, completed int, err error) {
	query := `
        SELECT
            COUNT(1),
            COUNT(CASE WHEN status = 'completed' THEN 1 END)
        FROM assignment
        WHERE campaign_id = $1
    `
	err = s.db.QueryRowxContext(ctx, query, campaignID).Scan(&total, &completed)
	return
}

func (s *Storage) ExpireAssignments(ctx context.Context, campaignID string) (int64, error) {
	query := `
        UPDATE assignment
        SET status = 'expired'
        WHERE campaign_id = $1 AND status IN ('pending', 'in_progress')`
	res, err := s.db.ExecContext(ctx, query, campaignID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Response (Ответ)

// UpsertResponse перезаписывает ответ; тональность прежнего текста сбрасывается
func (s *Storage) UpsertResponse(ctx context.Context, r *models.Response) (*models.Response, bool, error) {
	query := `
        INSERT INTO response
            (id, assignment_id, question_id, score, boolean_answer, text_answer, comment)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (assignment_id, question_id) DO UPDATE SET
            score = EXCLUDED.score,
            boolean_answer = EXCLUDED.boolean_answer,
            text_answer = EXCLUDED.text_answer,
            comment = EXCLUDED.comment,
            sentiment_score = NULL,
            sentiment_category = NULL,
            updated_at = NOW()
        RETURNING id, (xmax = 0) AS inserted`
	var (
		id       string
		inserted bool
	)
	err := s.db.QueryRowxContext(ctx, query,
		r.ID, r.AssignmentID, r.QuestionID, r.Score, r.BooleanAnswer, r.TextAnswer, r.Comment).
		Scan(&id, &inserted)
	if err != nil {
		logging.Log.Errorf("RESPONSE: upsert failed: %v", err)
		return nil, false, err
	}

	saved := &models.Response{}
	if err := s.db.GetContext(ctx, saved, `SELECT * FROM response WHERE id=$1`, id); err != nil {
		return nil, false, err
	}
	return saved, inserted, nil
}

func (s *Storage) ListResponses(ctx context.Context, assignmentID string) ([]models.Response, error) {
	query := `
        SELECT r.* FROM response r
        JOIN assignment a ON a.id = r.assignment_id
        LEFT JOIN campaign_question cq
            ON cq.campaign_id = a.campaign_id AND cq.question_id = r.question_id
        WHERE r.assignment_id = $1
        ORDER BY cq.sort_order, r.question_id`
	responses := []models.Response{}
	err := s.db.SelectContext(ctx, &responses, query, assignmentID)
	return responses, err
}

// ListScaleScores возвращает баллы по шкале из завершённых назначений оцениваемого
func (s *Storage) ListScaleScores(ctx context.Context, campaignID, evaluateeID string) ([]models.ScaleScore, error) {
	query := `
        SELECT r.assignment_id, a.relationship, r.score,
               q.category_id, qc.name AS category_name, qc.sort_order AS category_order
        FROM response r
        JOIN assignment a ON a.id = r.assignment_id
        JOIN question q ON q.id = r.question_id
        JOIN question_category qc ON qc.id = q.category_id
        WHERE a.campaign_id = $1
          AND a.evaluatee_id = $2
          AND a.status = 'completed'
          AND q.question_type = 'scale'
          AND r.score IS NOT NULL
        ORDER BY a.id, q.id`
	scores := []models.ScaleScore{}
	err := s.db.SelectContext(ctx, &scores, query, campaignID, evaluateeID)
	return scores, err
}

func (s *Storage) UpdateSentiment(ctx context.Context, responseID string, score float64, category string) error {
	query := `
        UPDATE response
        SET sentiment_score=$1, sentiment_category=$2
        WHERE id=$3`
	ok, err := affected(s.db.ExecContext(ctx, query, score, category, responseID))
	if err != nil {
		logging.Log.Errorf("RESPONSE: sentiment update of %s failed: %v", responseID, err)
		return err
	}
	if !ok {
		return notFound(sql.ErrNoRows, "response", responseID)
	}
	return nil
}
