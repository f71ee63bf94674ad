package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"evaluations/internal/logging"
	"evaluations/models"
)

// scorePrecision совпадает с NUMERIC(5,2) в схеме
const scorePrecision = 2

// Aggregator пересчитывает Result по завершённым назначениям оцениваемого.
type Aggregator struct {
	store  Store
	policy Policy
	newID  func() string
}

func NewAggregator(store Store, policy Policy) *Aggregator {
	return &Aggregator{store: store, policy: policy, newID: uuid.NewString}
}

// resultLockKey сериализует пересчёт и калибровку одного результата
func resultLockKey(campaignID, evaluateeID string) string {
	return "result:" + campaignID + ":" + evaluateeID
}

// HandleAssignmentCompleted - подписчик на AssignmentCompleted
func (ag *Aggregator) HandleAssignmentCompleted(ctx context.Context, e AssignmentCompleted) error {
	_, err := ag.Recompute(ctx, e.CampaignID, e.EvaluateeID)
	if errors.Is(err, ErrAlreadyFinalized) {
		logging.Log.WithFields(logrus.Fields{
			"campaign":  e.CampaignID,
			"evaluatee": e.EvaluateeID,
		}).Info("result is finalized, recompute skipped")
		return nil
	}
	return err
}

// Recompute - чистая идемпотентная функция от сохранённого состояния.
// Для зафиксированного результата возвращает его без изменений и ErrAlreadyFinalized.
func (ag *Aggregator) Recompute(ctx context.Context, campaignID, evaluateeID string) (*models.Result, error) {
	var out *models.Result
	err := ag.store.InTx(ctx, resultLockKey(campaignID, evaluateeID), func(tx Store) error {
		existing, err := tx.GetResultFor(ctx, campaignID, evaluateeID)
		switch {
		case err == nil && existing.IsFinalized:
			out = existing
			return ErrAlreadyFinalized
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}

		computed, err := ag.compute(ctx, tx, campaignID, evaluateeID)
		if err != nil {
			return err
		}
		if computed == nil {
			// ещё нет ни одного завершённого назначения
			out = existing
			return nil
		}
		computed.ID = ag.newID()
		saved, _, err := tx.UpsertResult(ctx, computed)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return out, err
		}
		return nil, fmt.Errorf("recompute %s/%s: %w", campaignID, evaluateeID, err)
	}
	if out == nil {
		return nil, fmt.Errorf("result %s/%s: %w", campaignID, evaluateeID, ErrNotFound)
	}
	return out, nil
}

// compute собирает поля результата; nil, если завершённых назначений нет
func (ag *Aggregator) compute(ctx context.Context, s Store, campaignID, evaluateeID string) (*models.Result, error) {
	assignments, err := s.ListEvaluateeAssignments(ctx, campaignID, evaluateeID)
	if err != nil {
		return nil, err
	}

	completedByRel := make(map[string]int)
	completed := 0
	for _, a := range assignments {
		if a.Status == models.AssignmentCompleted {
			completed++
			completedByRel[a.Relationship]++
		}
	}
	if completed == 0 {
		return nil, nil
	}

	scores, err := s.ListScaleScores(ctx, campaignID, evaluateeID)
	if err != nil {
		return nil, err
	}

	var all []int
	byRel := make(map[string][]int)
	for _, sc := range scores {
		all = append(all, sc.Score)
		byRel[sc.Relationship] = append(byRel[sc.Relationship], sc.Score)
	}

	res := &models.Result{
		CampaignID:      campaignID,
		EvaluateeID:     evaluateeID,
		TotalEvaluators: completed,
		CompletionRate:  percent(completed, len(assignments)),
	}

	sub := make(map[string]decimal.NullDecimal, len(models.Relationships))
	for _, rel := range models.Relationships {
		if completedByRel[rel] == 0 {
			sub[rel] = decimal.NullDecimal{}
			continue
		}
		sub[rel] = mean(byRel[rel])
	}
	res.SelfScore = sub[models.RelationSelf]
	res.SupervisorScore = sub[models.RelationSupervisor]
	res.PeerScore = sub[models.RelationPeer]
	res.SubordinateScore = sub[models.RelationSubordinate]

	res.OverallScore = mean(all)
	if ag.policy.OverallMode == OverallWeighted {
		if w, ok := weighted(sub, ag.policy.Weights); ok {
			res.OverallScore = w
		}
	}
	return res, nil
}

// mean - среднее арифметическое с округлением до двух знаков; null для пустого набора
func mean(scores []int) decimal.NullDecimal {
	if len(scores) == 0 {
		return decimal.NullDecimal{}
	}
	var sum int64
	for _, s := range scores {
		sum += int64(s)
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(scores))), scorePrecision)
	return decimal.NewNullDecimal(avg)
}

// weighted нормирует веса по отношениям, у которых есть балл и ненулевой вес
func weighted(sub map[string]decimal.NullDecimal, w Weights) (decimal.NullDecimal, bool) {
	total := decimal.Zero
	acc := decimal.Zero
	for _, rel := range models.Relationships {
		score, weight := sub[rel], w.For(rel)
		if !score.Valid || !weight.IsPositive() {
			continue
		}
		total = total.Add(weight)
		acc = acc.Add(score.Decimal.Mul(weight))
	}
	if !total.IsPositive() {
		return decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(acc.DivRound(total, scorePrecision)), true
}
