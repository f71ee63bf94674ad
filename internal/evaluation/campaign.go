package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"evaluations/internal/logging"
	"evaluations/models"
)

var hundred = decimal.NewFromInt(100)

// CampaignOptions - настройки кампании при создании
type CampaignOptions struct {
	IsAnonymous         bool
	AllowSelfEvaluation bool
	TargetDepartments   []string
	TargetUsers         []string
	CreatedBy           string
}

// Lifecycle владеет состоянием кампании и её целевой аудиторией.
type Lifecycle struct {
	store Store
	dir   Directory
	now   func() time.Time
	newID func() string
}

func NewLifecycle(store Store, dir Directory) *Lifecycle {
	return &Lifecycle{
		store: store,
		dir:   dir,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// dateOf отбрасывает время, оставляя календарную дату в UTC
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create создаёт кампанию в статусе draft
func (l *Lifecycle) Create(ctx context.Context, title, description string, start, end time.Time, opts CampaignOptions) (*models.Campaign, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 200 {
		return nil, fmt.Errorf("%w: title is required and max length 200", ErrInvalidCampaign)
	}
	start, end = dateOf(start), dateOf(end)
	if !end.After(start) {
		return nil, ErrInvalidDateRange
	}

	c := &models.Campaign{
		ID:                  l.newID(),
		Title:               title,
		Description:         description,
		StartDate:           start,
		EndDate:             end,
		Status:              models.CampaignDraft,
		IsAnonymous:         opts.IsAnonymous,
		AllowSelfEvaluation: opts.AllowSelfEvaluation,
		TargetDepartments:   dedupe(opts.TargetDepartments),
		TargetUsers:         dedupe(opts.TargetUsers),
		CreatedBy:           opts.CreatedBy,
	}

	err := l.store.InTx(ctx, "", func(tx Store) error {
		if err := tx.CreateCampaign(ctx, c); err != nil {
			return err
		}
		return audit(ctx, tx, auditCampaign, c.ID, "created", map[string]any{
			"title": c.Title, "start": c.StartDate.Format(time.DateOnly), "end": c.EndDate.Format(time.DateOnly),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	logging.Log.WithField("campaign", c.ID).Info("campaign created")
	return c, nil
}

// Get возвращает кампанию по id
func (l *Lifecycle) Get(ctx context.Context, id string) (*models.Campaign, error) {
	return l.store.GetCampaign(ctx, id)
}

// Activate: draft -> active. Повторная активация ничего не делает.
func (l *Lifecycle) Activate(ctx context.Context, id string) (*models.Campaign, error) {
	return l.transition(ctx, id, models.CampaignActive)
}

// Complete: active -> completed
func (l *Lifecycle) Complete(ctx context.Context, id string) (*models.Campaign, error) {
	return l.transition(ctx, id, models.CampaignCompleted)
}

// Archive: completed -> archived. Кампании никогда не удаляются.
func (l *Lifecycle) Archive(ctx context.Context, id string) (*models.Campaign, error) {
	return l.transition(ctx, id, models.CampaignArchived)
}

func (l *Lifecycle) transition(ctx context.Context, id, next string) (*models.Campaign, error) {
	var out *models.Campaign
	err := l.store.InTx(ctx, "campaign:"+id, func(tx Store) error {
		c, err := tx.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		out = c
		if c.Status == next && next == models.CampaignActive {
			return nil
		}

		// Проверка возможности перехода статуса
		switch c.Status {
		case models.CampaignDraft:
			if next != models.CampaignActive {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
			}
		case models.CampaignActive:
			if next != models.CampaignCompleted {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
			}
		case models.CampaignCompleted:
			if next != models.CampaignArchived {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
			}
		default:
			return fmt.Errorf("%w: campaign is %s", ErrInvalidTransition, c.Status)
		}

		if err := tx.UpdateCampaignStatus(ctx, id, next); err != nil {
			return err
		}
		prev := c.Status
		c.Status = next
		return audit(ctx, tx, auditCampaign, id, "status_changed", map[string]any{"from": prev, "to": next})
	})
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", id, err)
	}
	return out, nil
}

// IsCurrentlyOpen: кампания активна и сегодня входит в [start, end]
func (l *Lifecycle) IsCurrentlyOpen(c *models.Campaign) bool {
	if c.Status != models.CampaignActive {
		return false
	}
	today := dateOf(l.now())
	return !today.Before(dateOf(c.StartDate)) && !today.After(dateOf(c.EndDate))
}

// CompletionRate = completed / total * 100, либо 0 без назначений. Только чтение.
func (l *Lifecycle) CompletionRate(ctx context.Context, campaignID string) (decimal.Decimal, error) {
	total, completed, err := l.store.CountAssignments(ctx, campaignID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("count assignments: %w", err)
	}
	return percent(completed, total), nil
}

// ResolveAudience вычисляет оцениваемых в момент генерации назначений:
// явные пользователи плюс активные сотрудники целевых отделов.
// Кампания без целей охватывает всех активных пользователей.
func (l *Lifecycle) ResolveAudience(ctx context.Context, c *models.Campaign) ([]models.User, error) {
	if len(c.TargetUsers) == 0 && len(c.TargetDepartments) == 0 {
		users, err := l.dir.ListActiveUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active users: %w", err)
		}
		return sortUsers(users), nil
	}

	seen := make(map[string]models.User)
	for _, uid := range c.TargetUsers {
		u, err := l.dir.GetUser(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("target user %s: %w", uid, err)
		}
		if u.IsActive {
			seen[u.ID] = *u
		}
	}
	for _, dep := range c.TargetDepartments {
		members, err := l.dir.ListDepartmentMembers(ctx, dep)
		if err != nil {
			return nil, fmt.Errorf("department %s: %w", dep, err)
		}
		for _, m := range members {
			if m.IsActive {
				seen[m.ID] = m
			}
		}
	}

	users := make([]models.User, 0, len(seen))
	for _, u := range seen {
		users = append(users, u)
	}
	return sortUsers(users), nil
}

// ExpireOverdue переводит незавершённые назначения в expired, если кампания закончилась.
// Планировщика нет, вызывается явно.
func (l *Lifecycle) ExpireOverdue(ctx context.Context, campaignID string) (int64, error) {
	var n int64
	err := l.store.InTx(ctx, "campaign:"+campaignID, func(tx Store) error {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !dateOf(l.now()).After(dateOf(c.EndDate)) {
			return nil
		}
		n, err = tx.ExpireAssignments(ctx, campaignID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return audit(ctx, tx, auditCampaign, campaignID, "assignments_expired", map[string]any{"count": n})
	})
	if err != nil {
		return 0, fmt.Errorf("expire assignments of %s: %w", campaignID, err)
	}
	if n > 0 {
		logging.Log.WithFields(logrus.Fields{"campaign": campaignID, "expired": n}).Info("overdue assignments expired")
	}
	return n, nil
}

// percent = part / total * 100 с округлением до двух знаков, 0 при total == 0
func percent(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).DivRound(decimal.NewFromInt(int64(total)), 2)
}

func sortUsers(users []models.User) []models.User {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
