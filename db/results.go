package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"evaluations/internal/evaluation"
	"evaluations/internal/logging"
	"evaluations/models"
)

// Result (Результат)

func (s *Storage) GetResult(ctx context.Context, id string) (*models.Result, error) {
	r := &models.Result{}
	query := `SELECT * FROM result WHERE id=$1`
	if err := s.db.GetContext(ctx, r, query, id); err != nil {
		return nil, notFound(err, "result", id)
	}
	return r, nil
}

func (s *Storage) GetResultFor(ctx context.Context, campaignID, evaluateeID string) (*models.Result, error) {
	r := &models.Result{}
	query := `SELECT * FROM result WHERE campaign_id=$1 AND evaluatee_id=$2`
	if err := s.db.GetContext(ctx, r, query, campaignID, evaluateeID); err != nil {
		return nil, notFound(err, "result for", campaignID+"/"+evaluateeID)
	}
	return r, nil
}

// UpsertResult перезаписывает вычисляемые поля, is_finalized и finalized_at не трогает.
// Зафиксированная строка не обновляется.
func (s *Storage) UpsertResult(ctx context.Context, r *models.Result) (*models.Result, bool, error) {
	query := `
        INSERT INTO result
            (id, campaign_id, evaluatee_id, overall_score, self_score, supervisor_score,
             peer_score, subordinate_score, total_evaluators, completion_rate)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (campaign_id, evaluatee_id) DO UPDATE SET
            overall_score = EXCLUDED.overall_score,
            self_score = EXCLUDED.self_score,
            supervisor_score = EXCLUDED.supervisor_score,
            peer_score = EXCLUDED.peer_score,
            subordinate_score = EXCLUDED.subordinate_score,
            total_evaluators = EXCLUDED.total_evaluators,
            completion_rate = EXCLUDED.completion_rate
        WHERE result.is_finalized = FALSE
        RETURNING (xmax = 0) AS inserted`
	var inserted bool
	err := s.db.QueryRowxContext(ctx, query,
		r.ID, r.CampaignID, r.EvaluateeID, r.OverallScore, r.SelfScore, r.SupervisorScore,
		r.PeerScore, r.SubordinateScore, r.TotalEvaluators, r.CompletionRate).
		Scan(&inserted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing, gerr := s.GetResultFor(ctx, r.CampaignID, r.EvaluateeID)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, evaluation.ErrAlreadyFinalized
	case err != nil:
		logging.Log.Errorf("RESULT: upsert failed: %v", err)
		return nil, false, err
	}

	saved, err := s.GetResultFor(ctx, r.CampaignID, r.EvaluateeID)
	if err != nil {
		return nil, false, err
	}
	return saved, inserted, nil
}

func (s *Storage) AdjustOverallScore(ctx context.Context, id string, score decimal.Decimal) (bool, error) {
	query := `UPDATE result SET overall_score=$1 WHERE id=$2 AND is_finalized = FALSE`
	return affected(s.db.ExecContext(ctx, query, score, id))
}

func (s *Storage) FinalizeResult(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE result SET is_finalized = TRUE, finalized_at=$1 WHERE id=$2 AND is_finalized = FALSE`
	return affected(s.db.ExecContext(ctx, query, at, id))
}

func (s *Storage) ReopenResult(ctx context.Context, id string) (bool, error) {
	query := `UPDATE result SET is_finalized = FALSE, finalized_at = NULL WHERE id=$1 AND is_finalized = TRUE`
	return affected(s.db.ExecContext(ctx, query, id))
}

func (s *Storage) ListResults(ctx context.Context, campaignID string, onlyOpen bool) ([]models.Result, error) {
	query := `SELECT * FROM result WHERE campaign_id=$1`
	if onlyOpen {
		query += ` AND is_finalized = FALSE`
	}
	query += ` ORDER BY evaluatee_id`
	results := []models.Result{}
	err := s.db.SelectContext(ctx, &results, query, campaignID)
	return results, err
}
