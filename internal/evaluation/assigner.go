package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evaluations/internal/logging"
	"evaluations/models"
)

// AssignOptions включает категории назначений по отдельности.
type AssignOptions struct {
	Self       bool
	Supervisor bool
	// Peers - число коллег; отрицательное значение берёт Policy.PeerCount, 0 отключает.
	Peers        int
	Subordinates bool
	// Evaluatees задаёт оцениваемых явно; пусто - целевая аудитория кампании.
	Evaluatees []string
}

// AssignSummary - сколько назначений создано по каждой категории
type AssignSummary struct {
	Self        int `json:"self"`
	Supervisor  int `json:"supervisor"`
	Peer        int `json:"peer"`
	Subordinate int `json:"subordinate"`
	// Skipped - тройки, которые уже существовали
	Skipped int `json:"skipped"`
}

func (s AssignSummary) Total() int {
	return s.Self + s.Supervisor + s.Peer + s.Subordinate
}

// Assigner строит пары оценивающий -> оцениваемый по правилам отношений.
type Assigner struct {
	store     Store
	dir       Directory
	lifecycle *Lifecycle
	policy    Policy
	newID     func() string
}

func NewAssigner(store Store, dir Directory, lifecycle *Lifecycle, policy Policy) *Assigner {
	return &Assigner{
		store:     store,
		dir:       dir,
		lifecycle: lifecycle,
		policy:    policy,
		newID:     uuid.NewString,
	}
}

// BulkAssign создаёт назначения для каждого оцениваемого. Повторный вызов с теми же
// входными данными ничего не дублирует.
func (a *Assigner) BulkAssign(ctx context.Context, campaignID string, opts AssignOptions) (AssignSummary, error) {
	var sum AssignSummary

	c, err := a.openCampaign(ctx, campaignID)
	if err != nil {
		return sum, err
	}

	evaluatees, err := a.resolveEvaluatees(ctx, c, opts.Evaluatees)
	if err != nil {
		return sum, err
	}

	peers := opts.Peers
	if peers < 0 {
		peers = a.policy.PeerCount
	}

	for _, u := range evaluatees {
		if err := a.assignFor(ctx, c, u, opts, peers, &sum); err != nil {
			return sum, fmt.Errorf("assign for %s: %w", u.ID, err)
		}
	}

	logging.Log.WithFields(logrus.Fields{
		"campaign":    c.ID,
		"evaluatees":  len(evaluatees),
		"self":        sum.Self,
		"supervisor":  sum.Supervisor,
		"peer":        sum.Peer,
		"subordinate": sum.Subordinate,
		"skipped":     sum.Skipped,
	}).Info("bulk assignment finished")
	return sum, nil
}

// openCampaign загружает кампанию, в которую ещё можно добавлять назначения
func (a *Assigner) openCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	c, err := a.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	if c.Status == models.CampaignCompleted || c.Status == models.CampaignArchived {
		return nil, fmt.Errorf("%w: campaign is %s", ErrInvalidTransition, c.Status)
	}
	return c, nil
}

func (a *Assigner) resolveEvaluatees(ctx context.Context, c *models.Campaign, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return a.lifecycle.ResolveAudience(ctx, c)
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range dedupe(ids) {
		u, err := a.dir.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("evaluatee %s: %w", id, err)
		}
		users = append(users, *u)
	}
	return users, nil
}

func (a *Assigner) assignFor(ctx context.Context, c *models.Campaign, u models.User, opts AssignOptions, peers int, sum *AssignSummary) error {
	// эти пользователи уже оценивают u в другой роли и не попадают в коллеги
	excluded := map[string]bool{u.ID: true}

	if opts.Self && c.AllowSelfEvaluation {
		created, err := a.create(ctx, c.ID, u.ID, u.ID, models.RelationSelf)
		if err != nil {
			return err
		}
		sum.count(models.RelationSelf, created)
	}

	if u.SupervisorID != nil && *u.SupervisorID != "" {
		excluded[*u.SupervisorID] = true
		if opts.Supervisor {
			created, err := a.create(ctx, c.ID, *u.SupervisorID, u.ID, models.RelationSupervisor)
			if err != nil {
				return err
			}
			sum.count(models.RelationSupervisor, created)
		}
	}

	subs, err := a.dir.ListSubordinates(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list subordinates: %w", err)
	}
	subs = sortUsers(subs)
	for _, s := range subs {
		excluded[s.ID] = true
	}
	if opts.Subordinates {
		active := make([]models.User, 0, len(subs))
		for _, s := range subs {
			if s.IsActive {
				active = append(active, s)
			}
		}
		if a.policy.SubordinateLimit > 0 && a.policy.SubordinateLimit < len(active) {
			active = active[:a.policy.SubordinateLimit]
		}
		for _, s := range active {
			created, err := a.create(ctx, c.ID, s.ID, u.ID, models.RelationSubordinate)
			if err != nil {
				return err
			}
			sum.count(models.RelationSubordinate, created)
		}
	}

	if peers > 0 && u.DepartmentID != nil && *u.DepartmentID != "" {
		members, err := a.dir.ListDepartmentMembers(ctx, *u.DepartmentID)
		if err != nil {
			return fmt.Errorf("list department members: %w", err)
		}
		picked := 0
		for _, m := range sortUsers(members) {
			if picked == peers {
				break
			}
			if !m.IsActive || excluded[m.ID] {
				continue
			}
			created, err := a.create(ctx, c.ID, m.ID, u.ID, models.RelationPeer)
			if err != nil {
				return err
			}
			sum.count(models.RelationPeer, created)
			picked++
		}
	}
	return nil
}

// AssignOne создаёт одно назначение явно. Существующая тройка - ErrDuplicateAssignment.
func (a *Assigner) AssignOne(ctx context.Context, campaignID, evaluatorID, evaluateeID, relationship string) (*models.Assignment, error) {
	if err := checkRelationship(evaluatorID, evaluateeID, relationship); err != nil {
		return nil, err
	}
	c, err := a.openCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if relationship == models.RelationSelf && !c.AllowSelfEvaluation {
		return nil, ErrSelfEvaluationDisabled
	}
	for _, id := range []string{evaluatorID, evaluateeID} {
		if _, err := a.dir.GetUser(ctx, id); err != nil {
			return nil, fmt.Errorf("user %s: %w", id, err)
		}
	}

	var out *models.Assignment
	err = a.store.InTx(ctx, "", func(tx Store) error {
		asg, created, err := tx.CreateAssignment(ctx, a.newAssignment(campaignID, evaluatorID, evaluateeID, relationship))
		if err != nil {
			return err
		}
		if !created {
			return ErrDuplicateAssignment
		}
		out = asg
		return audit(ctx, tx, auditAssignment, asg.ID, "created", map[string]any{
			"campaign": campaignID, "relationship": relationship,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// create - идемпотентное создание: существующая тройка считается пропуском, а не ошибкой.
func (a *Assigner) create(ctx context.Context, campaignID, evaluatorID, evaluateeID, relationship string) (bool, error) {
	if err := checkRelationship(evaluatorID, evaluateeID, relationship); err != nil {
		return false, err
	}
	var created bool
	err := a.store.InTx(ctx, "", func(tx Store) error {
		asg, ok, err := tx.CreateAssignment(ctx, a.newAssignment(campaignID, evaluatorID, evaluateeID, relationship))
		if err != nil {
			return err
		}
		created = ok
		if !ok {
			return nil
		}
		return audit(ctx, tx, auditAssignment, asg.ID, "created", map[string]any{
			"campaign": campaignID, "relationship": relationship,
		})
	})
	if errors.Is(err, ErrDuplicateAssignment) {
		return false, nil
	}
	return created, err
}

func (a *Assigner) newAssignment(campaignID, evaluatorID, evaluateeID, relationship string) *models.Assignment {
	return &models.Assignment{
		ID:           a.newID(),
		CampaignID:   campaignID,
		EvaluatorID:  evaluatorID,
		EvaluateeID:  evaluateeID,
		Relationship: relationship,
		Status:       models.AssignmentPending,
	}
}

// checkRelationship: self тогда и только тогда, когда evaluator == evaluatee
func checkRelationship(evaluatorID, evaluateeID, relationship string) error {
	switch relationship {
	case models.RelationSelf:
		if evaluatorID != evaluateeID {
			return ErrSelfRelationshipMismatch
		}
	case models.RelationSupervisor, models.RelationPeer, models.RelationSubordinate:
		if evaluatorID == evaluateeID {
			return ErrSelfRelationshipMismatch
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRelationship, relationship)
	}
	return nil
}

func (s *AssignSummary) count(relationship string, created bool) {
	if !created {
		s.Skipped++
		return
	}
	switch relationship {
	case models.RelationSelf:
		s.Self++
	case models.RelationSupervisor:
		s.Supervisor++
	case models.RelationPeer:
		s.Peer++
	case models.RelationSubordinate:
		s.Subordinate++
	}
}
