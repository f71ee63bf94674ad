package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"evaluations/models"
)

// Границы распределения итоговых баллов, нижняя граница включается
var (
	excellentFrom = decimal.RequireFromString("4.5")
	goodFrom      = decimal.RequireFromString("3.5")
	averageFrom   = decimal.RequireFromString("2.5")
)

type ScoreDistribution struct {
	Excellent        int `json:"excellent"`
	Good             int `json:"good"`
	Average          int `json:"average"`
	NeedsImprovement int `json:"needsImprovement"`
}

func (d *ScoreDistribution) add(score decimal.Decimal) {
	switch {
	case score.GreaterThanOrEqual(excellentFrom):
		d.Excellent++
	case score.GreaterThanOrEqual(goodFrom):
		d.Good++
	case score.GreaterThanOrEqual(averageFrom):
		d.Average++
	default:
		d.NeedsImprovement++
	}
}

type DepartmentSummary struct {
	DepartmentID string              `json:"departmentId"`
	Results      int                 `json:"results"`
	AverageScore decimal.NullDecimal `json:"averageScore"`
	Finalized    int                 `json:"finalized"`

	scores []decimal.Decimal
}

// CampaignSummary - сводка для калибровки по всем результатам кампании
type CampaignSummary struct {
	CampaignID   string              `json:"campaignId"`
	Results      int                 `json:"results"`
	AverageScore decimal.NullDecimal `json:"averageScore"`
	Finalized    int                 `json:"finalized"`
	Pending      int                 `json:"pending"`
	Distribution ScoreDistribution   `json:"distribution"`
	Departments  []DepartmentSummary `json:"departments"`
}

type CategoryScore struct {
	CategoryID   string          `json:"categoryId"`
	Name         string          `json:"name"`
	AverageScore decimal.Decimal `json:"averageScore"`
	Responses    int             `json:"responses"`

	order  int
	scores []int
}

type RelationshipScore struct {
	Relationship string          `json:"relationship"`
	Evaluators   int             `json:"evaluators"`
	AverageScore decimal.Decimal `json:"averageScore"`
	Responses    int             `json:"responses"`
}

// ResultBreakdown - из чего сложился результат: средние по категориям и отношениям
type ResultBreakdown struct {
	Result        *models.Result      `json:"result"`
	Categories    []CategoryScore     `json:"categories"`
	Relationships []RelationshipScore `json:"relationships"`
}

// average - среднее с округлением до двух знаков; null для пустого набора
func average(values []decimal.Decimal) decimal.NullDecimal {
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.Sum(values[0], values[1:]...).
		DivRound(decimal.NewFromInt(int64(len(values))), scorePrecision))
}

// Summary считает статистику кампании: средний итоговый балл, число зафиксированных
// результатов, распределение баллов и разбивку по отделам оцениваемых.
// Результаты без итогового балла входят в счётчики, но не в средние и распределение.
func (c *Calibration) Summary(ctx context.Context, campaignID string) (*CampaignSummary, error) {
	if _, err := c.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	results, err := c.store.ListResults(ctx, campaignID, false)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	sum := &CampaignSummary{CampaignID: campaignID, Results: len(results), Departments: []DepartmentSummary{}}
	var scores []decimal.Decimal
	departments := map[string]*DepartmentSummary{}
	for _, r := range results {
		if r.IsFinalized {
			sum.Finalized++
		} else {
			sum.Pending++
		}
		if r.OverallScore.Valid {
			scores = append(scores, r.OverallScore.Decimal)
			sum.Distribution.add(r.OverallScore.Decimal)
		}

		u, err := c.dir.GetUser(ctx, r.EvaluateeID)
		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil:
			return nil, fmt.Errorf("evaluatee %s: %w", r.EvaluateeID, err)
		}
		if u.DepartmentID == nil || *u.DepartmentID == "" {
			continue
		}
		d, ok := departments[*u.DepartmentID]
		if !ok {
			d = &DepartmentSummary{DepartmentID: *u.DepartmentID}
			departments[d.DepartmentID] = d
		}
		d.Results++
		if r.IsFinalized {
			d.Finalized++
		}
		if r.OverallScore.Valid {
			d.scores = append(d.scores, r.OverallScore.Decimal)
		}
	}
	sum.AverageScore = average(scores)

	for _, d := range departments {
		d.AverageScore = average(d.scores)
		sum.Departments = append(sum.Departments, *d)
	}
	sort.Slice(sum.Departments, func(i, j int) bool {
		return sum.Departments[i].DepartmentID < sum.Departments[j].DepartmentID
	})
	return sum, nil
}

// Breakdown раскладывает баллы завершённых назначений оцениваемого по категориям
// вопросов и по отношениям. Учитываются только вопросы по шкале.
func (c *Calibration) Breakdown(ctx context.Context, resultID string) (*ResultBreakdown, error) {
	r, err := c.store.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	scores, err := c.store.ListScaleScores(ctx, r.CampaignID, r.EvaluateeID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	assignments, err := c.store.ListEvaluateeAssignments(ctx, r.CampaignID, r.EvaluateeID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	categories := map[string]*CategoryScore{}
	byRelation := map[string][]int{}
	for _, s := range scores {
		cat, ok := categories[s.CategoryID]
		if !ok {
			cat = &CategoryScore{CategoryID: s.CategoryID, Name: s.CategoryName, order: s.CategoryOrder}
			categories[s.CategoryID] = cat
		}
		cat.scores = append(cat.scores, s.Score)
		byRelation[s.Relationship] = append(byRelation[s.Relationship], s.Score)
	}

	out := &ResultBreakdown{Result: r, Categories: []CategoryScore{}, Relationships: []RelationshipScore{}}
	for _, cat := range categories {
		cat.AverageScore = mean(cat.scores).Decimal
		cat.Responses = len(cat.scores)
		out.Categories = append(out.Categories, *cat)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		a, b := out.Categories[i], out.Categories[j]
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Name < b.Name
	})

	completed := map[string]int{}
	for _, a := range assignments {
		if a.Status == models.AssignmentCompleted {
			completed[a.Relationship]++
		}
	}
	for _, rel := range models.Relationships {
		rs := byRelation[rel]
		if len(rs) == 0 {
			continue
		}
		out.Relationships = append(out.Relationships, RelationshipScore{
			Relationship: rel,
			Evaluators:   completed[rel],
			AverageScore: mean(rs).Decimal,
			Responses:    len(rs),
		})
	}
	return out, nil
}
