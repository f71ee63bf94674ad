package evaluation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"evaluations/internal/evaluation"
	"evaluations/internal/evaluation/testutils"
	"evaluations/models"
)

func TestBulkAssignSelfSupervisorPeers(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(true)

	opts := evaluation.AssignOptions{Self: true, Supervisor: true, Peers: 2, Evaluatees: []string{"u"}}
	sum, err := f.engine.Assigner.BulkAssign(f.ctx, c.ID, opts)
	require.NoError(t, err)
	require.Equal(t, evaluation.AssignSummary{Self: 1, Supervisor: 1, Peer: 2}, sum)

	got, err := f.store.ListEvaluateeAssignments(f.ctx, c.ID, "u")
	require.NoError(t, err)
	require.Len(t, got, 4)

	type pair struct{ evaluator, relationship string }
	var pairs []pair
	for _, a := range got {
		require.Equal(t, models.AssignmentPending, a.Status)
		pairs = append(pairs, pair{a.EvaluatorID, a.Relationship})
	}
	require.ElementsMatch(t, []pair{
		{"u", models.RelationSelf},
		{"s", models.RelationSupervisor},
		{"p1", models.RelationPeer},
		{"p2", models.RelationPeer},
	}, pairs)

	// повторный запуск ничего не дублирует
	sum, err = f.engine.Assigner.BulkAssign(f.ctx, c.ID, opts)
	require.NoError(t, err)
	require.Zero(t, sum.Total())
	require.Equal(t, 4, sum.Skipped)

	total, _, err := f.store.CountAssignments(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 4, total)
}

func TestBulkAssignUsesPolicyPeerCount(t *testing.T) {
	policy := evaluation.DefaultPolicy()
	policy.PeerCount = 1
	f := newFixtureWithPolicy(t, policy)
	f.seedTeam()
	c := f.activeCampaign(false)

	sum, err := f.engine.Assigner.BulkAssign(f.ctx, c.ID, evaluation.AssignOptions{Self: true, Peers: -1, Evaluatees: []string{"u"}})
	require.NoError(t, err)
	// самооценка в кампании запрещена
	require.Equal(t, evaluation.AssignSummary{Peer: 1}, sum)

	got, err := f.store.ListEvaluateeAssignments(f.ctx, c.ID, "u")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p1", got[0].EvaluatorID)
}

func TestBulkAssignSubordinates(t *testing.T) {
	policy := evaluation.DefaultPolicy()
	policy.SubordinateLimit = 2
	f := newFixtureWithPolicy(t, policy)
	f.seedTeam()
	gone := testutils.User("a0", "dev", "s")
	gone.IsActive = false
	f.store.AddUser(gone)

	c := f.activeCampaign(false)
	sum, err := f.engine.Assigner.BulkAssign(f.ctx, c.ID, evaluation.AssignOptions{
		Subordinates: true,
		Peers:        3,
		Evaluatees:   []string{"s"},
	})
	require.NoError(t, err)
	// активные подчинённые p1, p2, u; лимит 2. Подчинённые не становятся коллегами
	require.Equal(t, evaluation.AssignSummary{Subordinate: 2}, sum)

	got, err := f.store.ListEvaluateeAssignments(f.ctx, c.ID, "s")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, a := range got {
		require.Equal(t, models.RelationSubordinate, a.Relationship)
		require.NotEqual(t, "a0", a.EvaluatorID)
	}
}

func TestBulkAssignWholeAudience(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(true)

	sum, err := f.engine.Assigner.BulkAssign(f.ctx, c.ID, evaluation.AssignOptions{Self: true})
	require.NoError(t, err)
	require.Equal(t, 5, sum.Self)
	require.Equal(t, 5, sum.Total())
}

func TestBulkAssignClosedCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(true)
	_, err := f.engine.Lifecycle.Complete(f.ctx, c.ID)
	require.NoError(t, err)

	_, err = f.engine.Assigner.BulkAssign(f.ctx, c.ID, evaluation.AssignOptions{Self: true})
	require.ErrorIs(t, err, evaluation.ErrInvalidTransition)

	_, err = f.engine.Assigner.BulkAssign(f.ctx, "missing", evaluation.AssignOptions{Self: true})
	require.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestAssignOne(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(true)

	a := f.assign(c.ID, "x", "u", models.RelationPeer)
	require.Equal(t, models.AssignmentPending, a.Status)

	_, err := f.engine.Assigner.AssignOne(f.ctx, c.ID, "x", "u", models.RelationPeer)
	require.ErrorIs(t, err, evaluation.ErrDuplicateAssignment)

	// тройка уникальна независимо от отношения
	_, err = f.engine.Assigner.AssignOne(f.ctx, c.ID, "x", "u", models.RelationSupervisor)
	require.ErrorIs(t, err, evaluation.ErrDuplicateAssignment)

	tests := []struct {
		name                    string
		evaluator, relationship string
		want                    error
	}{
		{"self for someone else", "p1", models.RelationSelf, evaluation.ErrSelfRelationshipMismatch},
		{"peer on oneself", "u", models.RelationPeer, evaluation.ErrSelfRelationshipMismatch},
		{"unknown relationship", "p2", "mentor", evaluation.ErrUnknownRelationship},
		{"unknown evaluator", "ghost", models.RelationPeer, evaluation.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Assigner.AssignOne(f.ctx, c.ID, tt.evaluator, "u", tt.relationship)
			require.ErrorIs(t, err, tt.want)
		})
	}

	total, _, err := f.store.CountAssignments(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestAssignOneFollowsCampaignRules(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)

	_, err := f.engine.Assigner.AssignOne(f.ctx, c.ID, "u", "u", models.RelationSelf)
	require.ErrorIs(t, err, evaluation.ErrSelfEvaluationDisabled)

	f.assign(c.ID, "p1", "u", models.RelationPeer)
	_, err = f.engine.Lifecycle.Complete(f.ctx, c.ID)
	require.NoError(t, err)
	_, err = f.engine.Assigner.AssignOne(f.ctx, c.ID, "p2", "u", models.RelationPeer)
	require.ErrorIs(t, err, evaluation.ErrInvalidTransition)

	_, err = f.engine.Lifecycle.Archive(f.ctx, c.ID)
	require.NoError(t, err)
	_, err = f.engine.Assigner.AssignOne(f.ctx, c.ID, "s", "u", models.RelationSupervisor)
	require.ErrorIs(t, err, evaluation.ErrInvalidTransition)

	total, _, err := f.store.CountAssignments(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestEvaluatorAssignmentsPaginated(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	first := f.assign(c.ID, "s", "u", models.RelationSupervisor)
	second := f.assign(c.ID, "s", "p1", models.RelationSupervisor)
	third := f.assign(c.ID, "s", "p2", models.RelationSupervisor)

	page, err := f.engine.Recorder.EvaluatorAssignments(f.ctx, "s", 2, 0)
	require.NoError(t, err)
	require.Equal(t, []string{third.ID, second.ID}, []string{page[0].ID, page[1].ID})

	page, err = f.engine.Recorder.EvaluatorAssignments(f.ctx, "s", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, first.ID, page[0].ID)
}
