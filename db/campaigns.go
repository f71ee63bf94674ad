package db

import (
	"context"
	"database/sql"

	"evaluations/internal/logging"
	"evaluations/models"
)

// Campaign (Кампания)

func (s *Storage) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	query := `
        INSERT INTO campaign
            (id, title, description, start_date, end_date, status, is_anonymous,
             allow_self_evaluation, target_departments, target_users, created_by)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`
	err := s.db.QueryRowxContext(ctx, query,
		c.ID, c.Title, c.Description, c.StartDate, c.EndDate, c.Status, c.IsAnonymous,
		c.AllowSelfEvaluation, c.TargetDepartments, c.TargetUsers, c.CreatedBy).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		logging.Log.Errorf("CAMPAIGN: create failed: %v", err)
	}
	return err
}

func (s *Storage) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	query := `SELECT * FROM campaign WHERE id=$1`
	if err := s.db.GetContext(ctx, c, query, id); err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return c, nil
}

func (s *Storage) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	query := `UPDATE campaign SET status=$1, updated_at=NOW() WHERE id=$2`
	ok, err := affected(s.db.ExecContext(ctx, query, status, id))
	if err != nil {
		return err
	}
	if !ok {
		return notFound(sql.ErrNoRows, "campaign", id)
	}
	return nil
}

// QuestionCategory (Категория вопросов)

func (s *Storage) CreateCategory(ctx context.Context, c *models.QuestionCategory) error {
	query := `
        INSERT INTO question_category (id, name, description, sort_order)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`
	return s.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.Description, c.Order).Scan(&c.CreatedAt)
}

// Question (Вопрос)

func (s *Storage) CreateQuestion(ctx context.Context, q *models.Question) error {
	query := `
        INSERT INTO question (id, category_id, text, question_type, max_score, is_required, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at`
	return s.db.QueryRowxContext(ctx, query,
		q.ID, q.CategoryID, q.Text, q.Type, q.MaxScore, q.IsRequired, q.Order).
		Scan(&q.CreatedAt)
}

func (s *Storage) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q := &models.Question{}
	query := `SELECT * FROM question WHERE id=$1`
	if err := s.db.GetContext(ctx, q, query, id); err != nil {
		return nil, notFound(err, "question", id)
	}
	return q, nil
}

func (s *Storage) UpdateQuestion(ctx context.Context, q *models.Question) error {
	query := `
        UPDATE question
        SET category_id=$1, text=$2, question_type=$3, max_score=$4, is_required=$5, sort_order=$6
        WHERE id=$7`
	_, err := s.db.ExecContext(ctx, query,
		q.CategoryID, q.Text, q.Type, q.MaxScore, q.IsRequired, q.Order, q.ID)
	return err
}

func (s *Storage) QuestionHasResponses(ctx context.Context, questionID string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM response WHERE question_id=$1`
	if err := s.db.GetContext(ctx, &count, query, questionID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) AttachQuestion(ctx context.Context, campaignID, questionID string, order int) (bool, error) {
	query := `
        INSERT INTO campaign_question (campaign_id, question_id, sort_order)
        VALUES ($1, $2, $3)
        ON CONFLICT (campaign_id, question_id) DO NOTHING`
	return affected(s.db.ExecContext(ctx, query, campaignID, questionID, order))
}

func (s *Storage) ListCampaignQuestions(ctx context.Context, campaignID string) ([]models.Question, error) {
	query := `
        SELECT q.*
        FROM question q
        JOIN campaign_question cq ON cq.question_id = q.id
        WHERE cq.campaign_id = $1
        ORDER BY cq.sort_order, q.sort_order, q.id`
	questions := []models.Question{}
	err := s.db.SelectContext(ctx, &questions, query, campaignID)
	return questions, err
}
