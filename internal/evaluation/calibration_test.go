package evaluation_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"evaluations/internal/evaluation"
	"evaluations/models"
)

func TestAdjustThenFinalize(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	qs := f.scaleQuestions(c.ID, 2)
	f.complete(c.ID, "p1", "u", models.RelationPeer, qs, 2, 3)
	f.complete(c.ID, "s", "u", models.RelationSupervisor, qs, 5, 5)
	r := f.result(c.ID, "u")

	adjusted, err := f.engine.Calibration.AdjustScore(f.ctx, r.ID, decimal.RequireFromString("4.8"), "outlier peer review")
	require.NoError(t, err)
	requireScore(t, "4.8", adjusted.OverallScore)
	// баллы по отношениям не пересчитываются
	requireScore(t, "2.5", adjusted.PeerScore)
	requireScore(t, "5", adjusted.SupervisorScore)

	finalized, err := f.engine.Calibration.Finalize(f.ctx, r.ID)
	require.NoError(t, err)
	require.True(t, finalized.IsFinalized)
	require.NotNil(t, finalized.FinalizedAt)
	require.Equal(t, fixedNow, *finalized.FinalizedAt)

	_, err = f.engine.Calibration.AdjustScore(f.ctx, r.ID, decimal.RequireFromString("3"), "second thoughts")
	require.ErrorIs(t, err, evaluation.ErrAlreadyFinalized)
	requireScore(t, "4.8", f.result(c.ID, "u").OverallScore)

	// повторная фиксация ничего не меняет
	f.now = fixedNow.AddDate(0, 0, 1)
	again, err := f.engine.Calibration.Finalize(f.ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, fixedNow, *again.FinalizedAt)

	trail, err := f.engine.AuditTrail(f.ctx, "result", r.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, "score_adjusted", trail[0].Action)
	require.Equal(t, "finalized", trail[1].Action)

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(trail[0].Details), &details))
	require.Equal(t, map[string]string{"old": "3.75", "new": "4.8", "reason": "outlier peer review"}, details)
}

func TestAdjustScoreValidation(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	qs := f.scaleQuestions(c.ID, 1)
	f.complete(c.ID, "p1", "u", models.RelationPeer, qs, 3)
	r := f.result(c.ID, "u")

	for _, v := range []string{"-0.01", "5.01", "7"} {
		_, err := f.engine.Calibration.AdjustScore(f.ctx, r.ID, decimal.RequireFromString(v), "")
		require.ErrorIs(t, err, evaluation.ErrScoreOutOfRange, v)
	}

	got, err := f.engine.Calibration.AdjustScore(f.ctx, r.ID, decimal.RequireFromString("4.125"), "")
	require.NoError(t, err)
	requireScore(t, "4.13", got.OverallScore)

	_, err = f.engine.Calibration.AdjustScore(f.ctx, "missing", decimal.RequireFromString("4"), "")
	require.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	qs := f.scaleQuestions(c.ID, 1)
	f.complete(c.ID, "p1", "u", models.RelationPeer, qs, 3)
	r := f.result(c.ID, "u")

	_, err := f.engine.Calibration.Reopen(f.ctx, r.ID, "")
	require.ErrorIs(t, err, evaluation.ErrNotFinalized)

	_, err = f.engine.Calibration.Finalize(f.ctx, r.ID)
	require.NoError(t, err)
	reopened, err := f.engine.Calibration.Reopen(f.ctx, r.ID, "appeal")
	require.NoError(t, err)
	require.False(t, reopened.IsFinalized)
	require.Nil(t, reopened.FinalizedAt)

	_, err = f.engine.Calibration.AdjustScore(f.ctx, r.ID, decimal.RequireFromString("4"), "appeal accepted")
	require.NoError(t, err)
}

func TestBulkFinalizeContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	qs := f.scaleQuestions(c.ID, 1)
	f.complete(c.ID, "s", "u", models.RelationSupervisor, qs, 4)
	f.complete(c.ID, "s", "p1", models.RelationSupervisor, qs, 3)
	f.complete(c.ID, "s", "p2", models.RelationSupervisor, qs, 5)

	already := f.result(c.ID, "p2")
	_, err := f.engine.Calibration.Finalize(f.ctx, already.ID)
	require.NoError(t, err)

	broken := f.result(c.ID, "p1")
	f.store.FailFinalize(broken.ID, errors.New("connection reset"))

	n, err := f.engine.Calibration.BulkFinalize(f.ctx, c.ID)
	require.Equal(t, 1, n)
	require.ErrorContains(t, err, "connection reset")
	require.ErrorContains(t, err, broken.ID)
	var failures *evaluation.FinalizeFailures
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures.Unwrap(), 1)

	require.True(t, f.result(c.ID, "u").IsFinalized)
	require.False(t, f.result(c.ID, "p1").IsFinalized)
	require.True(t, f.result(c.ID, "p2").IsFinalized)

	f.store.FailFinalize(broken.ID, nil)
	n, err = f.engine.Calibration.BulkFinalize(f.ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.engine.Calibration.BulkFinalize(f.ctx, c.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.engine.Calibration.BulkFinalize(f.ctx, "missing")
	require.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestBulkFinalizeListFailureIsNotPartial(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	qs := f.scaleQuestions(c.ID, 1)
	f.complete(c.ID, "s", "u", models.RelationSupervisor, qs, 4)

	f.store.FailListResults(errors.New("connection refused"))
	n, err := f.engine.Calibration.BulkFinalize(f.ctx, c.ID)
	require.Zero(t, n)
	require.ErrorContains(t, err, "connection refused")
	var failures *evaluation.FinalizeFailures
	require.False(t, errors.As(err, &failures))
	require.False(t, f.result(c.ID, "u").IsFinalized)
}
