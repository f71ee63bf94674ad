package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"evaluations/internal/logging"
	"evaluations/models"
)

// Calibration - ручная корректировка и фиксация результатов.
type Calibration struct {
	store Store
	dir   Directory
	now   func() time.Time
}

func NewCalibration(store Store, dir Directory) *Calibration {
	return &Calibration{
		store: store,
		dir:   dir,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// withResult выполняет fn под блокировкой результата
func (c *Calibration) withResult(ctx context.Context, id string, fn func(tx Store, r *models.Result) error) (*models.Result, error) {
	r, err := c.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *models.Result
	err = c.store.InTx(ctx, resultLockKey(r.CampaignID, r.EvaluateeID), func(tx Store) error {
		// перечитываем под блокировкой
		cur, err := tx.GetResult(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, cur); err != nil {
			return err
		}
		out, err = tx.GetResult(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdjustScore перезаписывает overall_score. Баллы по отношениям не пересчитываются.
func (c *Calibration) AdjustScore(ctx context.Context, resultID string, newOverall decimal.Decimal, reason string) (*models.Result, error) {
	if newOverall.IsNegative() || newOverall.GreaterThan(decimal.NewFromInt(defaultMaxScore)) {
		return nil, fmt.Errorf("%w: overall score %s", ErrScoreOutOfRange, newOverall)
	}
	newOverall = newOverall.Round(scorePrecision)

	return c.withResult(ctx, resultID, func(tx Store, r *models.Result) error {
		if r.IsFinalized {
			return ErrAlreadyFinalized
		}
		ok, err := tx.AdjustOverallScore(ctx, r.ID, newOverall)
		if err != nil {
			return err
		}
		if !ok {
			// зафиксирован между чтением и записью
			return ErrAlreadyFinalized
		}

		old := "null"
		if r.OverallScore.Valid {
			old = r.OverallScore.Decimal.String()
		}
		logging.Log.WithFields(logrus.Fields{
			"result": r.ID,
			"old":    old,
			"new":    newOverall.String(),
		}).Info("result score adjusted")
		return audit(ctx, tx, auditResult, r.ID, "score_adjusted", map[string]any{
			"old": old, "new": newOverall.String(), "reason": strings.TrimSpace(reason),
		})
	})
}

// Finalize фиксирует результат. Для уже зафиксированного - без изменений.
func (c *Calibration) Finalize(ctx context.Context, resultID string) (*models.Result, error) {
	return c.withResult(ctx, resultID, func(tx Store, r *models.Result) error {
		if r.IsFinalized {
			return nil
		}
		return c.finalize(ctx, tx, r)
	})
}

func (c *Calibration) finalize(ctx context.Context, tx Store, r *models.Result) error {
	ok, err := tx.FinalizeResult(ctx, r.ID, c.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyFinalized
	}
	return audit(ctx, tx, auditResult, r.ID, "finalized", nil)
}

// Reopen снимает фиксацию, после чего результат снова можно пересчитывать и корректировать.
func (c *Calibration) Reopen(ctx context.Context, resultID, reason string) (*models.Result, error) {
	return c.withResult(ctx, resultID, func(tx Store, r *models.Result) error {
		if !r.IsFinalized {
			return ErrNotFinalized
		}
		ok, err := tx.ReopenResult(ctx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFinalized
		}
		return audit(ctx, tx, auditResult, r.ID, "reopened", map[string]any{"reason": strings.TrimSpace(reason)})
	})
}

// FinalizeFailures - ошибки фиксации отдельных результатов в BulkFinalize.
// Ошибки, прервавшие весь вызов, возвращаются без этой обёртки.
type FinalizeFailures struct {
	errs error
}

func (f *FinalizeFailures) Error() string {
	return f.errs.Error()
}

func (f *FinalizeFailures) Unwrap() []error {
	return multierr.Errors(f.errs)
}

// BulkFinalize фиксирует все незафиксированные результаты кампании.
// Ошибка по одному результату не прерывает остальные; такие ошибки возвращаются
// вместе как *FinalizeFailures.
func (c *Calibration) BulkFinalize(ctx context.Context, campaignID string) (int, error) {
	if _, err := c.store.GetCampaign(ctx, campaignID); err != nil {
		return 0, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	open, err := c.store.ListResults(ctx, campaignID, true)
	if err != nil {
		return 0, fmt.Errorf("list results: %w", err)
	}

	var errs error
	count := 0
	for _, r := range open {
		err := c.store.InTx(ctx, resultLockKey(r.CampaignID, r.EvaluateeID), func(tx Store) error {
			return c.finalize(ctx, tx, &r)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("result %s: %w", r.ID, err))
			continue
		}
		count++
	}

	logging.Log.WithFields(logrus.Fields{
		"campaign":  campaignID,
		"finalized": count,
		"failed":    len(multierr.Errors(errs)),
	}).Info("bulk finalize finished")
	if errs != nil {
		return count, &FinalizeFailures{errs: errs}
	}
	return count, nil
}

// Results возвращает результаты кампании
func (c *Calibration) Results(ctx context.Context, campaignID string) ([]models.Result, error) {
	return c.store.ListResults(ctx, campaignID, false)
}

// Result возвращает результат по id
func (c *Calibration) Result(ctx context.Context, id string) (*models.Result, error) {
	return c.store.GetResult(ctx, id)
}
